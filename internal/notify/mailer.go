// Package notify emails the run summary once a run has finished.
package notify

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/xkilldash9x/klassi-cli/internal/config"
	"github.com/xkilldash9x/klassi-cli/internal/reporting"
	"github.com/xkilldash9x/klassi-cli/internal/results"
)

//go:embed templates/summary.html.tmpl
var summaryTemplate string

var bodyTemplate = template.Must(template.New("summary").Parse(summaryTemplate))

// Summary is what the run-end email reports.
type Summary struct {
	Title    string
	Date     string
	Metadata []reporting.MetaEntry
	Records  []results.Record
	// ReportPath is attached when the file exists at send time.
	ReportPath string
	// LogPath is attached when set and present.
	LogPath string
}

// Counts tallies the records by status.
func (s Summary) Counts() map[results.Status]int {
	counts := map[results.Status]int{}
	for _, r := range s.Records {
		counts[r.Status]++
	}
	return counts
}

// Sender delivers a run summary.
type Sender interface {
	Send(ctx context.Context, s Summary) error
}

// deliverFunc hands a composed message to the transport.
type deliverFunc func(ctx context.Context, msg *mail.Msg) error

// Mailer sends summaries over SMTP.
type Mailer struct {
	cfg     config.EmailConfig
	logger  *zap.Logger
	fs      afero.Fs
	deliver deliverFunc
}

// MailerOption customizes a Mailer.
type MailerOption func(*Mailer)

// WithFS sets the filesystem attachments are read from.
func WithFS(fs afero.Fs) MailerOption {
	return func(m *Mailer) { m.fs = fs }
}

// withDeliver replaces the SMTP transport.
func withDeliver(d deliverFunc) MailerOption {
	return func(m *Mailer) { m.deliver = d }
}

// NewMailer validates cfg and returns a Mailer.
func NewMailer(cfg config.EmailConfig, logger *zap.Logger, opts ...MailerOption) (*Mailer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Mailer{cfg: cfg, logger: logger.Named("notify"), fs: afero.NewOsFs()}
	m.deliver = m.dialAndSend
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

func tlsPolicy(name string) mail.TLSPolicy {
	switch name {
	case "opportunistic":
		return mail.TLSOpportunistic
	case "none":
		return mail.NoTLS
	default:
		return mail.TLSMandatory
	}
}

func (m *Mailer) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPolicy(tlsPolicy(m.cfg.TLSPolicy)),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}
	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create mail client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}

// Send composes and delivers the summary.
func (m *Mailer) Send(ctx context.Context, s Summary) error {
	msg, err := m.compose(s)
	if err != nil {
		return err
	}
	if err := m.deliver(ctx, msg); err != nil {
		return fmt.Errorf("failed to send run summary: %w", err)
	}
	m.logger.Info("Run summary emailed.", zap.Strings("to", m.cfg.To))
	return nil
}

type bodyData struct {
	Summary
	Counts []statusCount
}

type statusCount struct {
	Status results.Status
	Count  int
}

func (m *Mailer) compose(s Summary) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(m.cfg.To...); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	subject := m.cfg.Subject
	if s.Title != "" {
		subject = fmt.Sprintf("%s: %s", subject, s.Title)
	}
	msg.Subject(subject)

	data := bodyData{Summary: s}
	for status, n := range s.Counts() {
		data.Counts = append(data.Counts, statusCount{Status: status, Count: n})
	}
	sort.Slice(data.Counts, func(i, j int) bool { return data.Counts[i].Status < data.Counts[j].Status })

	var body bytes.Buffer
	if err := bodyTemplate.Execute(&body, data); err != nil {
		return nil, fmt.Errorf("failed to render email body: %w", err)
	}
	msg.SetBodyString(mail.TypeTextHTML, body.String())

	if err := m.attach(msg, s.ReportPath); err != nil {
		return nil, err
	}
	if m.cfg.AttachLog {
		if err := m.attach(msg, s.LogPath); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

// attach adds path to msg when it exists. A missing file is only logged.
func (m *Mailer) attach(msg *mail.Msg, path string) error {
	if path == "" {
		return nil
	}
	data, err := afero.ReadFile(m.fs, path)
	if err != nil {
		m.logger.Warn("Skipping attachment.", zap.String("file", path), zap.Error(err))
		return nil
	}
	if err := msg.AttachReader(filepath.Base(path), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to attach %s: %w", path, err)
	}
	return nil
}
