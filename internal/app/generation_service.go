package app

import (
	"context"
	"fmt"

	"vidyai-rag/internal/model"
	"vidyai-rag/internal/platform/logger"
	"vidyai-rag/internal/repository"
)

const maxQuestions = 50

// QuestionSetResult is a generated (or cached) question set for one chapter.
type QuestionSetResult struct {
	ChapterID    uint             `json:"chapter_id"`
	ChapterName  string           `json:"chapter_name"`
	NumQuestions int              `json:"num_questions"`
	Questions    []model.Question `json:"questions"`
	Cached       bool             `json:"cached"`
}

type GenerationService struct {
	chapterRepo *repository.ChapterRepository
	ingestion   *IngestionService
	retrieval   *RetrievalService
	questions   *QuestionCacheService
	generator   QuestionGenerator
	log         *logger.Logger
}

func NewGenerationService(
	chapterRepo *repository.ChapterRepository,
	ingestion *IngestionService,
	retrieval *RetrievalService,
	questions *QuestionCacheService,
	generator QuestionGenerator,
	log *logger.Logger,
) *GenerationService {
	if log == nil {
		log = logger.NewNop()
	}
	return &GenerationService{
		chapterRepo: chapterRepo,
		ingestion:   ingestion,
		retrieval:   retrieval,
		questions:   questions,
		generator:   generator,
		log:         log.With("component", "generation"),
	}
}

func chapterQuery(chapterName string) string {
	return fmt.Sprintf("Key concepts, theorems, formulas and important topics in %s", chapterName)
}

// GenerateQuestionSet serves a question set for the chapter from the question cache,
// or prepares embeddings, retrieves context and calls the generator on a miss.
func (s *GenerationService) GenerateQuestionSet(ctx context.Context, chapterID uint, count int) (*QuestionSetResult, error) {
	if chapterID == 0 || count <= 0 || count > maxQuestions {
		return nil, ErrInvalidInput
	}
	chapter, err := s.chapterRepo.GetByID(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	if chapter == nil {
		return nil, ErrChapterNotFound
	}

	set, cached, err := s.questions.GetOrGenerate(ctx, chapterID, count, func(ctx context.Context) (*model.QuestionSet, error) {
		return s.generate(ctx, chapter, count)
	})
	if err != nil {
		return nil, err
	}
	return &QuestionSetResult{
		ChapterID:    chapter.ID,
		ChapterName:  chapter.Name,
		NumQuestions: count,
		Questions:    set.Questions,
		Cached:       cached,
	}, nil
}

func (s *GenerationService) generate(ctx context.Context, chapter *model.Chapter, count int) (*model.QuestionSet, error) {
	res, err := s.ingestion.EnsureRetrievable(ctx, chapter.ID, chapter.SourceRef)
	if err != nil {
		s.log.Error("ensure embeddings failed", "chapter_id", chapter.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingPrepare, err)
	}
	if res.Embedded == 0 {
		return nil, ErrNoEmbeddings
	}
	if chapter.Status != model.ChapterStatusReady {
		if err := s.chapterRepo.UpdateStatus(ctx, chapter.ID, model.ChapterStatusReady, nil); err != nil {
			s.log.Warn("repair chapter status failed", "chapter_id", chapter.ID, "error", err)
		}
	}

	text, err := s.retrieval.RetrieveContext(ctx, chapter.ID, chapterQuery(chapter.Name))
	if err != nil {
		return nil, fmt.Errorf("retrieve context failed: %w", err)
	}
	if text == "" {
		return nil, ErrNoContext
	}

	set, err := s.generator.Generate(ctx, text, chapter.Name, count)
	if err != nil {
		s.log.Error("question generation failed", "chapter_id", chapter.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	return set, nil
}
