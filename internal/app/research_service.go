package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"deepresearch/internal/model"
	"deepresearch/internal/pipeline"
	"deepresearch/internal/pkg/pdfextract"
	"deepresearch/internal/pkg/textextract"
)

var (
	ErrEmptyQuery          = errors.New("query is empty")
	ErrSessionNotFound     = errors.New("research session not found")
	ErrInvalidContinuation = errors.New("parent session is not completed")
	ErrSessionTerminal     = errors.New("session already finished")
	ErrAlreadyDispatched   = errors.New("session already dispatched")
	ErrEnqueue             = errors.New("enqueue research job failed")
	ErrUnsupportedFile     = errors.New("unsupported file type")
	ErrEmptyDocument       = errors.New("document has no extractable text")
)

// SessionStore is the persistence contract for sessions and their terminal
// rows. MarkRunning and the terminal writes are conditional transitions: a
// row that already left the expected state is not touched.
type SessionStore interface {
	Create(session *model.ResearchSession) error
	GetByID(id string) (*model.ResearchSession, error)
	List() ([]model.ResearchSession, error)
	MarkRunning(id string) (bool, error)
	SaveResult(id, traceID string, result *model.ResearchResult) error
	MarkFailed(id, traceID, reason string) error
	GetSummary(id string) (*model.ResearchSummary, error)
	GetResult(id string) (*model.ResearchResult, error)
}

type DocumentStore interface {
	Create(doc *model.UploadedDocument) error
	ListBySessionID(sessionID string) ([]model.UploadedDocument, error)
}

// JobPublisher enqueues a session for background execution. A nil error
// means the job is durably queued and will eventually be dispatched at
// least once.
type JobPublisher interface {
	Publish(ctx context.Context, sessionID string) error
}

// DetailCache caches terminal detail bundles for the poll path.
type DetailCache interface {
	GetDetail(ctx context.Context, sessionID string) (*ResearchDetail, bool, error)
	SetDetail(ctx context.Context, sessionID string, detail *ResearchDetail) error
}

// ResearchService owns the session lifecycle: PENDING on creation, RUNNING
// under the background executor, then exactly one of COMPLETED or FAILED.
type ResearchService struct {
	sessions   SessionStore
	documents  DocumentStore
	publisher  JobPublisher
	cache      DetailCache
	assembler  *ContextAssembler
	summarizer *Summarizer
	ledger     *UsageLedger
	runner     pipeline.Runner

	costModel           string
	pipelineTimeout     time.Duration
	uploadStoreMaxChars int

	logger zerolog.Logger
}

func NewResearchService(
	sessions SessionStore,
	documents DocumentStore,
	publisher JobPublisher,
	cache DetailCache,
	assembler *ContextAssembler,
	summarizer *Summarizer,
	ledger *UsageLedger,
	runner pipeline.Runner,
	costModel string,
	pipelineTimeout time.Duration,
	uploadStoreMaxChars int,
	logger zerolog.Logger,
) *ResearchService {
	if pipelineTimeout <= 0 {
		pipelineTimeout = 15 * time.Minute
	}
	return &ResearchService{
		sessions:            sessions,
		documents:           documents,
		publisher:           publisher,
		cache:               cache,
		assembler:           assembler,
		summarizer:          summarizer,
		ledger:              ledger,
		runner:              runner,
		costModel:           costModel,
		pipelineTimeout:     pipelineTimeout,
		uploadStoreMaxChars: uploadStoreMaxChars,
		logger:              logger,
	}
}

// Start validates the query and optional parent, persists a PENDING session
// and enqueues exactly one job for it. It returns without waiting for
// execution. Continuation requires the parent to be COMPLETED at creation
// time, which also rules out cycles by construction.
func (s *ResearchService) Start(ctx context.Context, query, parentID string) (*model.ResearchSession, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	var parentRef *string
	if parentID != "" {
		parent, err := s.sessions.GetByID(parentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, ErrSessionNotFound
		}
		if parent.Status != model.StatusCompleted {
			return nil, ErrInvalidContinuation
		}
		parentRef = &parent.ID
	}

	session := &model.ResearchSession{
		ID:            uuid.NewString(),
		ParentID:      parentRef,
		OriginalQuery: query,
		Status:        model.StatusPending,
	}
	if err := s.sessions.Create(session); err != nil {
		return nil, err
	}

	if err := s.publisher.Publish(ctx, session.ID); err != nil {
		s.logger.Error().Err(err).Str("session_id", session.ID).Msg("enqueue research job failed")
		return nil, ErrEnqueue
	}
	return session, nil
}

// Dispatch is invoked by the background executor, never by a client. The
// PENDING to RUNNING transition is a compare-and-swap, so duplicate
// deliveries collapse into ErrAlreadyDispatched no-ops. A pipeline failure
// or wall-clock overrun marks the session FAILED with the reason recorded;
// there is no automatic retry.
func (s *ResearchService) Dispatch(ctx context.Context, sessionID string) error {
	session, err := s.sessions.GetByID(sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}

	transitioned, err := s.sessions.MarkRunning(sessionID)
	if err != nil {
		return err
	}
	if !transitioned {
		return ErrAlreadyDispatched
	}

	traceID := uuid.NewString()

	input, err := s.assembleInput(session)
	if err != nil {
		// The session is already RUNNING; record the failure so it does not
		// stay stuck on a broken continuation chain.
		if failErr := s.sessions.MarkFailed(sessionID, traceID, fmt.Sprintf("Run failed: context assembly: %v", err)); failErr != nil {
			return failErr
		}
		return nil
	}

	runCtx, cancel := context.WithTimeout(ctx, s.pipelineTimeout)
	defer cancel()

	result, err := s.runner.Run(runCtx, input)
	if err != nil {
		reason := fmt.Sprintf("Run failed: %v", err)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			reason = fmt.Sprintf("Run failed: exceeded wall-clock ceiling of %s", s.pipelineTimeout)
		}
		s.logger.Warn().Str("session_id", sessionID).Str("trace_id", traceID).Msg(reason)
		if failErr := s.sessions.MarkFailed(sessionID, traceID, reason); failErr != nil {
			return failErr
		}
		return nil
	}

	summary := s.summarizer.SummarizeReport(ctx, result.Report)

	report := &model.ResearchReport{SessionID: sessionID, Report: result.Report}
	report.SetSources(result.Sources)

	terminal := &model.ResearchResult{
		Report:    report,
		Summary:   &model.ResearchSummary{SessionID: sessionID, Summary: summary},
		Reasoning: &model.ResearchReasoning{SessionID: sessionID, Reasoning: result.Reasoning},
		Cost:      s.ledger.Record(sessionID, s.costModel, result.Usage),
	}
	if err := s.sessions.SaveResult(sessionID, traceID, terminal); err != nil {
		return err
	}

	s.logger.Info().
		Str("session_id", sessionID).
		Str("trace_id", traceID).
		Int("input_tokens", result.Usage.InputTokens).
		Int("output_tokens", result.Usage.OutputTokens).
		Msg("research session completed")
	return nil
}

// assembleInput builds the pipeline input for a session: its query, the
// parent's summary when continuing, and every summarized document of the
// parent chain link plus its own, in upload order.
func (s *ResearchService) assembleInput(session *model.ResearchSession) (string, error) {
	parentSummary := ""
	var docs []model.UploadedDocument

	if session.ParentID != nil {
		summary, err := s.sessions.GetSummary(*session.ParentID)
		if err != nil {
			return "", err
		}
		if summary != nil {
			parentSummary = summary.Summary
		}

		parentDocs, err := s.documents.ListBySessionID(*session.ParentID)
		if err != nil {
			return "", err
		}
		docs = append(docs, parentDocs...)
	}

	own, err := s.documents.ListBySessionID(session.ID)
	if err != nil {
		return "", err
	}
	docs = append(docs, own...)

	summaries := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc.SummaryReady() {
			summaries = append(summaries, doc.ExtractedSummary)
		}
	}

	return s.assembler.Assemble(session.OriginalQuery, parentSummary, summaries), nil
}

// Upload attaches a document to a non-terminal session. Summarization blocks
// up to the configured wait; past it the document is stored without a summary
// and the upload still succeeds.
func (s *ResearchService) Upload(ctx context.Context, sessionID, filename string, file io.Reader) (*model.UploadedDocument, error) {
	session, err := s.sessions.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.Terminal() {
		return nil, ErrSessionTerminal
	}

	text, err := s.extractText(filename, file)
	if err != nil {
		return nil, err
	}

	summary, err := s.summarizer.SummarizeDocument(ctx, text)
	if err != nil {
		if !errors.Is(err, ErrSummaryTimeout) {
			return nil, err
		}
		s.logger.Warn().Str("session_id", sessionID).Str("filename", filename).Msg("document summary wait exceeded, storing without summary")
		summary = ""
	}

	// The summary wait can outlast the session. Re-check before attaching;
	// a document never lands on a terminal session.
	session, err = s.sessions.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.Terminal() {
		return nil, ErrSessionTerminal
	}

	doc := &model.UploadedDocument{
		ID:               uuid.NewString(),
		SessionID:        sessionID,
		Filename:         filename,
		ExtractedText:    truncateRunes(text, s.uploadStoreMaxChars),
		ExtractedSummary: summary,
	}
	if err := s.documents.Create(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *ResearchService) extractText(filename string, file io.Reader) (string, error) {
	var (
		text string
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		text, err = pdfextract.ExtractText(file)
		if err != nil {
			s.logger.Warn().Err(err).Str("filename", filename).Msg("pdf extraction failed")
			return "", ErrEmptyDocument
		}
	case ".txt":
		raw, readErr := io.ReadAll(file)
		if readErr != nil {
			return "", fmt.Errorf("read uploaded file failed: %w", readErr)
		}
		text = textextract.Decode(raw)
	default:
		return "", ErrUnsupportedFile
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyDocument
	}
	return text, nil
}
