package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/docs-manager/internal/core/domain"
	"github.com/kirillkom/docs-manager/internal/infrastructure/resilience"
)

const EventDocumentFiled = "document.filed"

// DocumentFiledEvent is the JSON payload published for every filed document.
type DocumentFiledEvent struct {
	Event        string    `json:"event"`
	DocumentID   string    `json:"document_id"`
	CaptureID    string    `json:"capture_id"`
	DocumentType string    `json:"document_type"`
	PersonName   string    `json:"person_name,omitempty"`
	DateOfBirth  string    `json:"date_of_birth,omitempty"`
	Folder       string    `json:"folder"`
	FileName     string    `json:"file_name"`
	Path         string    `json:"path"`
	MimeType     string    `json:"mime_type"`
	CapturedAt   time.Time `json:"captured_at"`
	FiledAt      time.Time `json:"filed_at"`
}

type conn interface {
	Publish(subject string, data []byte) error
}

type Publisher struct {
	nc       *nats.Conn
	conn     conn
	subject  string
	executor *resilience.Executor
	logger   *slog.Logger
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url, subject string, options Options) (*Publisher, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	nc, err := nats.Connect(
		url,
		nats.Name("docs-manager"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Publisher{
		nc:       nc,
		conn:     nc,
		subject:  subject,
		executor: options.ResilienceExecutor,
		logger:   logger,
	}, nil
}

func (p *Publisher) Close() {
	if p.nc == nil {
		return
	}
	if err := p.nc.FlushTimeout(5 * time.Second); err != nil {
		p.logger.Warn("nats flush on close failed", "error", err)
	}
	p.nc.Close()
}

func (p *Publisher) PublishDocumentFiled(ctx context.Context, doc domain.FiledDocument) error {
	payload, err := json.Marshal(newDocumentFiledEvent(doc))
	if err != nil {
		return fmt.Errorf("marshal document.filed event: %w", err)
	}

	call := func(_ context.Context) error {
		if err := p.conn.Publish(p.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if p.executor != nil {
		err = p.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

func newDocumentFiledEvent(doc domain.FiledDocument) DocumentFiledEvent {
	return DocumentFiledEvent{
		Event:        EventDocumentFiled,
		DocumentID:   doc.ID,
		CaptureID:    doc.CaptureID,
		DocumentType: string(doc.Classified.Type),
		PersonName:   doc.Classified.PersonName,
		DateOfBirth:  doc.Classified.DateOfBirth,
		Folder:       doc.Folder,
		FileName:     doc.FileName,
		Path:         doc.Path,
		MimeType:     doc.MimeType,
		CapturedAt:   doc.CapturedAt,
		FiledAt:      doc.FiledAt,
	}
}
