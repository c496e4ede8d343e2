package nats

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/infrastructure/resilience"
)

const (
	queueGroup  = "batch-workers"
	jobIDHeader = "Fda-Job-Id"
	drainFlush  = 5 * time.Second
)

// Queue carries batch job ids from the API to the worker pool. Workers share
// one queue group so each submitted job is handled once.
type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	logger   *slog.Logger
}

type Options struct {
	Name                 string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// natsOptions turns Options into client options; zero fields fall back to
// 2s connect timeout, 2s reconnect wait and 60 reconnects.
func (o Options) natsOptions() []nats.Option {
	name := o.Name
	if name == "" {
		name = "fiscal-doc-analyzer"
	}
	retry := true
	if o.RetryOnFailedConnect != nil {
		retry = *o.RetryOnFailedConnect
	}
	logger := o.logger()
	return []nats.Option{
		nats.Name(name),
		nats.Timeout(positiveOr(o.ConnectTimeout, 2*time.Second)),
		nats.ReconnectWait(positiveOr(o.ReconnectWait, 2*time.Second)),
		nats.MaxReconnects(positiveOr(o.MaxReconnects, 60)),
		nats.RetryOnFailedConnect(retry),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			logger.Error("nats_async_error", "subject", subject, "error", err)
		}),
	}
}

func positiveOr[T int | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	conn, err := nats.Connect(url, options.natsOptions()...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
		logger:   options.logger(),
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// Conn is shared with the audit publisher so one process holds one connection.
func (q *Queue) Conn() *nats.Conn {
	return q.conn
}

func (q *Queue) PublishJobSubmitted(ctx context.Context, jobID string) error {
	msg := nats.NewMsg(q.subject)
	msg.Header.Set(jobIDHeader, jobID)
	msg.Data = []byte(jobID)
	return publishMsg(ctx, q.conn, q.executor, msg)
}

// SubscribeJobSubmitted blocks until ctx is done, then drains in-flight
// handlers before returning.
func (q *Queue) SubscribeJobSubmitted(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, queueGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		jobID := jobIDFromMsg(msg)
		if jobID == "" {
			q.logger.Warn("batch_job_message_without_id", "subject", msg.Subject)
			return
		}
		if err := handler(ctx, jobID); err != nil {
			q.logger.Error("batch_job_handler_failed", "job_id", jobID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(drainFlush); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

// jobIDFromMsg prefers the header and falls back to the body so messages from
// publishers that send a bare id still work.
func jobIDFromMsg(msg *nats.Msg) string {
	if msg == nil {
		return ""
	}
	if msg.Header != nil {
		if id := strings.TrimSpace(msg.Header.Get(jobIDHeader)); id != "" {
			return id
		}
	}
	return strings.TrimSpace(string(msg.Data))
}

func publishMsg(ctx context.Context, conn *nats.Conn, executor *resilience.Executor, msg *nats.Msg) error {
	call := func(_ context.Context) error {
		if err := conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	var err error
	if executor != nil {
		err = executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}
