package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	for _, bad := range []string{"0", "-1", "abc", ""} {
		_, err := parseID(bad)
		assert.Error(t, err, bad)
	}
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"ensure", "enqueue", "job", "context", "stats"} {
		assert.True(t, names[want], want)
	}

	enqueue, _, err := root.Find([]string{"enqueue"})
	require.NoError(t, err)
	assert.NotNil(t, enqueue.Flags().Lookup("source"))
	assert.Equal(t, "true", enqueue.Annotations[needsQueue])

	stats, _, err := root.Find([]string{"stats"})
	require.NoError(t, err)
	assert.Empty(t, stats.Annotations[needsQueue])
}

func TestChapterFileSourceRef(t *testing.T) {
	loc := chapterFile{board: "CBSE", class: 10, subject: "Social Science", number: 3, file: "ch3.pdf"}

	ref, err := loc.sourceRef("")
	require.NoError(t, err)
	assert.Equal(t, "pdfs/cbse/class_10/social_science/chapter_3_ch3.pdf", ref)

	ref, err = loc.sourceRef("pdfs/explicit.pdf")
	require.NoError(t, err)
	assert.Equal(t, "pdfs/explicit.pdf", ref)

	ref, err = chapterFile{}.sourceRef("")
	require.NoError(t, err)
	assert.Empty(t, ref)

	_, err = chapterFile{file: "ch3.pdf", board: "CBSE"}.sourceRef("")
	assert.Error(t, err)
}
