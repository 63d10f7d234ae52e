package translate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/streamlate/streamlate/internal/common"
)

// Provider is the slice of the Ollama client the service depends on.
type Provider interface {
	Streamer
	ListModels(ctx context.Context) ([]string, error)
}

// Cache stores completed translations keyed by (model, languages, text).
// A nil Cache disables caching.
type Cache interface {
	GetTranslation(ctx context.Context, model, sourceLang, targetLang, text string) (string, bool, error)
	SetTranslation(ctx context.Context, model, sourceLang, targetLang, text, translated string) error
}

// Request is one translation order as received from the API or a queued job.
type Request struct {
	Model          string
	SourceLanguage string
	TargetLanguage string
	Text           string
}

type Service struct {
	repo     *Repo
	provider Provider
	cache    Cache

	defaultModel  string
	tmpl          string
	flushInterval time.Duration

	mu          sync.Mutex
	translators map[uint64]*Translator
}

func NewService(repo *Repo, provider Provider, cache Cache, defaultModel, tmpl string, flushInterval time.Duration) *Service {
	if defaultModel == "" {
		defaultModel = "llama3:latest"
	}
	return &Service{
		repo:          repo,
		provider:      provider,
		cache:         cache,
		defaultModel:  defaultModel,
		tmpl:          tmpl,
		flushInterval: flushInterval,
		translators:   make(map[uint64]*Translator),
	}
}

// translatorFor returns the user's translator, creating it on first use.
// The single-active-session rule is per user: a user restarting a stream
// preempts their own prior session, never another user's.
func (s *Service) translatorFor(userID uint64) *Translator {
	s.mu.Lock()
	defer s.mu.Unlock()
	tr, ok := s.translators[userID]
	if !ok {
		tr = NewTranslator(s.provider, s.flushInterval)
		s.translators[userID] = tr
	}
	return tr
}

func (s *Service) ListModels(ctx context.Context) ([]string, error) {
	return s.provider.ListModels(ctx)
}

func (s *Service) ListRecords(ctx context.Context, userID uint64, limit int, beforeID uint64) ([]Record, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListRecords(ctx, userID, limit, beforeID)
}

func (s *Service) model(req Request) string {
	if strings.TrimSpace(req.Model) != "" {
		return req.Model
	}
	return s.defaultModel
}

// Translate runs one translation to completion and persists the outcome as a
// history record. The record is written for failed and cancelled runs too,
// with whatever partial text was produced; the error (if any) is returned
// alongside it.
func (s *Service) Translate(ctx context.Context, userID uint64, req Request) (*Record, error) {
	model := s.model(req)

	if s.cache != nil {
		if cached, hit, err := s.cache.GetTranslation(ctx, model, req.SourceLanguage, req.TargetLanguage, req.Text); err == nil && hit {
			return s.persist(ctx, userID, model, req, cached, RecordCompleted, nil)
		}
	}

	prompt := RenderPrompt(s.tmpl, req.SourceLanguage, req.TargetLanguage, req.Text)
	deltas, errs := s.provider.Stream(ctx, model, prompt)

	var b strings.Builder
	for d := range deltas {
		b.WriteString(d)
	}
	err := <-errs

	status := RecordCompleted
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		status = RecordCancelled
	default:
		status = RecordFailed
	}

	rec, dbErr := s.persist(ctx, userID, model, req, b.String(), status, err)
	if dbErr != nil {
		return nil, dbErr
	}
	if status == RecordCompleted && s.cache != nil {
		_ = s.cache.SetTranslation(context.WithoutCancel(ctx), model, req.SourceLanguage, req.TargetLanguage, req.Text, rec.TranslatedText)
	}
	return rec, err
}

// TranslateStream starts a streaming translation and returns teacher-shaped
// channels: batched text chunks, a done signal, the persisted record ID, and
// at most one error. Chunks are already throttled; the caller only forwards.
func (s *Service) TranslateStream(ctx context.Context, userID uint64, req Request) (chunks <-chan string, done <-chan struct{}, recordID <-chan string, errs <-chan error) {
	outChunks := make(chan string, 16)
	outDone := make(chan struct{})
	outRecID := make(chan string, 1)
	outErrs := make(chan error, 1)

	go func() {
		defer close(outChunks)
		defer close(outErrs)

		model := s.model(req)
		prompt := RenderPrompt(s.tmpl, req.SourceLanguage, req.TargetLanguage, req.Text)

		var b strings.Builder
		sess := s.translatorFor(userID).Start(ctx, model, prompt, func(text string) {
			b.WriteString(text)
			select {
			case outChunks <- text:
			case <-ctx.Done():
				// Consumer is gone; the session is terminal or about to be.
			}
		})
		st, serr := sess.Wait()

		status := RecordCompleted
		switch st {
		case StateCancelled:
			status = RecordCancelled
		case StateFailed:
			status = RecordFailed
		}

		rec, dbErr := s.persist(ctx, userID, model, req, b.String(), status, serr)
		if dbErr != nil {
			outErrs <- dbErr
			return
		}

		switch st {
		case StateCompleted:
			if s.cache != nil {
				_ = s.cache.SetTranslation(context.WithoutCancel(ctx), model, req.SourceLanguage, req.TargetLanguage, req.Text, rec.TranslatedText)
			}
			outRecID <- rec.RecordID
			close(outDone)
		case StateFailed:
			outErrs <- serr
		case StateCancelled:
			// Explicit terminal signal: a consumer preempted by a newer
			// session must still observe an end of stream.
			outErrs <- ErrCancelled
		}
	}()

	return outChunks, outDone, outRecID, outErrs
}

func (s *Service) persist(ctx context.Context, userID uint64, model string, req Request, translated string, status RecordStatus, cause error) (*Record, error) {
	rid, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	rec := &Record{
		RecordID:       rid,
		UserID:         userID,
		Model:          model,
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
		SourceText:     req.Text,
		TranslatedText: translated,
		Status:         status,
	}
	if cause != nil && status == RecordFailed {
		msg := cause.Error()
		rec.Error = &msg
	}
	// Insert survives request cancellation so cancelled sessions still show
	// up in history with their partial text.
	if err := s.repo.InsertRecord(context.WithoutCancel(ctx), rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Job orchestration (async path)

func (s *Service) CreateJobOrGetExisting(ctx context.Context, job *Job) (*Job, bool, error) {
	return s.repo.CreateJobOrGetExisting(ctx, job)
}

func (s *Service) CreateJob(ctx context.Context, job *Job) error {
	return s.repo.CreateJob(ctx, job)
}

func (s *Service) GetJob(ctx context.Context, jobID string) (*Job, error) {
	return s.repo.GetJobByID(ctx, jobID)
}

// RunJob executes one queued translation and records its outcome on the job
// row. Used by the queue worker.
func (s *Service) RunJob(ctx context.Context, jobID string) error {
	_ = s.repo.UpdateJobStatusRunning(ctx, jobID)

	j, err := s.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}

	rec, err := s.Translate(ctx, j.UserID, Request{
		Model:          j.Model,
		SourceLanguage: j.SourceLanguage,
		TargetLanguage: j.TargetLanguage,
		Text:           j.SourceText,
	})
	if err != nil {
		_ = s.repo.MarkJobFailed(ctx, jobID, err.Error())
		return err
	}
	return s.repo.MarkJobSucceeded(ctx, jobID, rec.RecordID)
}
