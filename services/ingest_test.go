package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/phillip/contribution-pipeline-go/broadcast"
	models "github.com/phillip/contribution-pipeline-go/models"
	"github.com/phillip/contribution-pipeline-go/parser"
	"github.com/phillip/contribution-pipeline-go/store"
)

var testNow = time.Date(2024, time.March, 10, 9, 30, 0, 0, time.UTC)

type fakeExporter struct {
	name  string
	err   error
	mu    sync.Mutex
	calls int
	sent  []string
}

func (f *fakeExporter) Name() string { return f.name }

func (f *fakeExporter) Send(_ context.Context, c *models.Contribution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, c.ID.Hex())
	return nil
}

type fakeConfirmer struct {
	err   error
	calls int
	phone string
}

func (f *fakeConfirmer) SendConfirmation(_ context.Context, c *models.Contribution, _ string) error {
	f.calls++
	f.phone = c.PhoneNumber
	return f.err
}

type fakeIntegrations struct {
	exporters []Exporter
	confirmer Confirmer
}

func (f *fakeIntegrations) Exporters(context.Context) []Exporter { return f.exporters }

func (f *fakeIntegrations) Confirmer(context.Context) Confirmer {
	if f.confirmer == nil {
		return nil
	}
	return f.confirmer
}

type recordingHub struct {
	mu     sync.Mutex
	events []broadcast.Event
}

func (h *recordingHub) Publish(ev broadcast.Event) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	return 1, nil
}

func newStore(t *testing.T) *store.SQLite {
	t.Helper()
	s, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func activeCampaign(t *testing.T, s store.Store) *models.Campaign {
	t.Helper()
	c := &models.Campaign{Name: "Harambee", StartDate: testNow, IsActive: true}
	require.NoError(t, s.CreateCampaign(context.Background(), c))
	return c
}

func newIngestor(s store.Store, hub Publisher, integrations Integrations, opts ...Option) *Ingestor {
	opts = append([]Option{WithParserOptions(parser.WithClock(func() time.Time { return testNow }))}, opts...)
	return NewIngestor(s, hub, integrations, opts...)
}

func logsAt(t *testing.T, s store.Store, level string) []models.SystemLog {
	t.Helper()
	all, err := s.ListLogs(context.Background(), 0)
	require.NoError(t, err)
	var out []models.SystemLog
	for _, l := range all {
		if l.Level == level {
			out = append(out, l)
		}
	}
	return out
}

func TestHandleSMSCreatesContribution(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	campaign := activeCampaign(t, s)
	hub := &recordingHub{}
	ing := newIngestor(s, hub, nil)

	res, err := ing.HandleSMS(ctx, SMSPayload{
		Message: "XYZ1A2 Confirmed. You have received Ksh1,500.00 from JOHN DOE 07001 on 12/5/24",
		From:    "MPESA",
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, res.Outcome)

	c := res.Contribution
	assert.Equal(t, parser.PlatformMpesa, c.Platform)
	assert.InDelta(t, 1500, c.Amount, 0.001)
	assert.Equal(t, "John Doe", c.SenderName)
	assert.Equal(t, "07001", c.MemberID)
	assert.Equal(t, models.SourceSMS, c.Source)
	assert.Equal(t, campaign.ID, *c.CampaignID)
	assert.False(t, c.Processed)
	assert.True(t, time.Date(2024, 12, 5, 0, 0, 0, 0, time.UTC).Equal(c.Date))

	stored, err := s.GetContribution(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "John Doe", stored.SenderName)

	require.Len(t, hub.events, 1)
	assert.Equal(t, broadcast.EventNewContribution, hub.events[0].Type)
	assert.Equal(t, c.ID, hub.events[0].Data.(*models.Contribution).ID)

	infos := logsAt(t, s, models.LevelInfo)
	require.Len(t, infos, 2)
	assert.Equal(t, "Successfully processed SMS contribution", infos[0].Message)
	assert.Contains(t, infos[0].Data, c.ID.Hex())
}

func TestHandleEmailZelle(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	activeCampaign(t, s)
	ing := newIngestor(s, nil, nil)

	res, err := ing.HandleEmail(ctx, EmailPayload{
		Subject:      "You've received money from Jane Smith",
		Body:         "Jane Smith has sent you $250.00 with Zelle ... Memo: 4821",
		From:         "alerts@zelle.example",
		ReceivedDate: "2024-05-02T14:00:00Z",
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, res.Outcome)
	assert.Equal(t, parser.PlatformZelle, res.Contribution.Platform)
	assert.InDelta(t, 250, res.Contribution.Amount, 0.001)
	assert.Equal(t, "4821", res.Contribution.MemberID)
	assert.Equal(t, models.SourceEmail, res.Contribution.Source)
	assert.True(t, time.Date(2024, 5, 2, 14, 0, 0, 0, time.UTC).Equal(res.Contribution.Date))
}

func TestNoMatchCreatesNothing(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	activeCampaign(t, s)
	hub := &recordingHub{}
	ing := newIngestor(s, hub, nil)

	res, err := ing.HandleSMS(ctx, SMSPayload{Message: "Your OTP is 123456", From: "BANK"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoMatch, res.Outcome)
	assert.Nil(t, res.Contribution)

	all, err := s.ListContributions(ctx, models.ContributionFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, hub.events)

	warnings := logsAt(t, s, models.LevelWarning)
	require.Len(t, warnings, 1)
	assert.Equal(t, "SMS_PARSER", warnings[0].Service)
}

func TestNoActiveCampaign(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	hub := &recordingHub{}
	ing := newIngestor(s, hub, nil)

	res, err := ing.HandleSMS(ctx, SMSPayload{
		Message: "XYZ1A2 Confirmed. You have received Ksh1,500.00 from JOHN DOE 07001 on 12/5/24",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoCampaign, res.Outcome)

	all, err := s.ListContributions(ctx, models.ContributionFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, hub.events)

	errs := logsAt(t, s, models.LevelError)
	require.Len(t, errs, 1)
	assert.Equal(t, "No active campaign found", errs[0].Message)
}

func TestWhatsAppMemberFallbackAndConfirmation(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	activeCampaign(t, s)
	confirmer := &fakeConfirmer{}
	ing := newIngestor(s, &recordingHub{}, &fakeIntegrations{confirmer: confirmer})

	res, err := ing.HandleWhatsApp(ctx, whatsAppEnvelope("254712345678", "Payment of KES 500 received from Mary Atieno"))
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, res.Outcome)
	assert.Equal(t, "254712345678", res.Contribution.MemberID)
	assert.Equal(t, parser.PlatformWhatsAppPay, res.Contribution.Platform)
	assert.Equal(t, models.SourceWhatsApp, res.Contribution.Source)
	assert.True(t, res.Confirmed)
	assert.Equal(t, 1, confirmer.calls)
	assert.Equal(t, "254712345678", confirmer.phone)
}

func TestWhatsAppConfirmationFailureIsNonFatal(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	activeCampaign(t, s)
	hub := &recordingHub{}
	confirmer := &fakeConfirmer{err: errors.New("graph api down")}
	ing := newIngestor(s, hub, &fakeIntegrations{confirmer: confirmer})

	res, err := ing.HandleWhatsApp(ctx, whatsAppEnvelope("254712345678", "Payment of KES 500 received from Mary Atieno"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	assert.False(t, res.Confirmed)
	assert.Len(t, hub.events, 1)

	warnings := logsAt(t, s, models.LevelWarning)
	require.Len(t, warnings, 1)
	assert.Equal(t, "Failed to send WhatsApp confirmation", warnings[0].Message)
}

func TestWhatsAppWithoutTextMessage(t *testing.T) {
	s := newStore(t)
	ing := newIngestor(s, nil, nil)

	res, err := ing.HandleWhatsApp(context.Background(), parser.WhatsAppEnvelope{Object: "whatsapp_business_account"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoMessage, res.Outcome)
}

func TestExportSuccessMarksProcessed(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	activeCampaign(t, s)
	hub := &recordingHub{}
	sheets := &fakeExporter{name: models.IntegrationSheets}
	kafka := &fakeExporter{name: models.IntegrationKafka}
	ing := newIngestor(s, hub, &fakeIntegrations{exporters: []Exporter{sheets, kafka}})

	res, err := ing.HandleSMS(ctx, SMSPayload{
		Message: "You received $120.50 from Alice Brown on 03/15/2024. Memo: 1001",
	})
	require.NoError(t, err)
	assert.True(t, res.Exported)
	assert.True(t, res.Contribution.Processed)
	assert.Equal(t, []string{res.Contribution.ID.Hex()}, sheets.sent)
	assert.Equal(t, []string{res.Contribution.ID.Hex()}, kafka.sent)

	stored, err := s.GetContribution(ctx, res.Contribution.ID)
	require.NoError(t, err)
	assert.True(t, stored.Processed)

	// the broadcast carries the processed record
	assert.True(t, hub.events[0].Data.(*models.Contribution).Processed)
}

func TestExportFailureKeepsRecord(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	activeCampaign(t, s)
	hub := &recordingHub{}
	ok := &fakeExporter{name: models.IntegrationKafka}
	bad := &fakeExporter{name: models.IntegrationSheets, err: errors.New("quota exceeded")}
	ing := newIngestor(s, hub, &fakeIntegrations{exporters: []Exporter{bad, ok}})

	res, err := ing.HandleSMS(ctx, SMSPayload{
		Message: "You received $120.50 from Alice Brown on 03/15/2024. Memo: 1001",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	assert.False(t, res.Exported)
	assert.Equal(t, 1, ok.calls)

	stored, err := s.GetContribution(ctx, res.Contribution.ID)
	require.NoError(t, err)
	assert.False(t, stored.Processed)
	assert.Len(t, hub.events, 1)
}

func TestExportRetriesUpToLimit(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	activeCampaign(t, s)
	bad := &fakeExporter{name: models.IntegrationSheets, err: errors.New("timeout")}
	ing := newIngestor(s, nil, &fakeIntegrations{exporters: []Exporter{bad}}, WithRetry(3, time.Second))
	var slept []time.Duration
	ing.sleep = func(d time.Duration) { slept = append(slept, d) }

	res, err := ing.HandleSMS(ctx, SMSPayload{
		Message: "You received $120.50 from Alice Brown on 03/15/2024. Memo: 1001",
	})
	require.NoError(t, err)
	assert.False(t, res.Exported)
	assert.Equal(t, 3, bad.calls)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, slept)
}

func TestDefaultExportIsFireOnce(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	activeCampaign(t, s)
	bad := &fakeExporter{name: models.IntegrationSheets, err: errors.New("timeout")}
	ing := newIngestor(s, nil, &fakeIntegrations{exporters: []Exporter{bad}})

	_, err := ing.HandleSMS(ctx, SMSPayload{
		Message: "You received $120.50 from Alice Brown on 03/15/2024. Memo: 1001",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, bad.calls)
}

// failingStore breaks contribution writes.
type failingStore struct {
	store.Store
}

func (failingStore) CreateContribution(context.Context, *models.Contribution) error {
	return errors.New("disk full")
}

func TestPersistenceFailurePropagates(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	activeCampaign(t, s)
	hub := &recordingHub{}
	ing := newIngestor(failingStore{s}, hub, nil)

	res, err := ing.HandleSMS(ctx, SMSPayload{
		Message: "XYZ1A2 Confirmed. You have received Ksh1,500.00 from JOHN DOE 07001 on 12/5/24",
	})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, hub.events)

	errs := logsAt(t, s, models.LevelError)
	require.Len(t, errs, 1)
	assert.Equal(t, "Error processing SMS webhook", errs[0].Message)
}

// deadlineStore records, per method, whether every call carried a deadline.
type deadlineStore struct {
	store.Store
	bounded map[string]bool
}

func (d *deadlineStore) note(ctx context.Context, method string) {
	_, ok := ctx.Deadline()
	if prev, seen := d.bounded[method]; seen {
		ok = ok && prev
	}
	d.bounded[method] = ok
}

func (d *deadlineStore) GetActiveCampaign(ctx context.Context) (*models.Campaign, error) {
	d.note(ctx, "GetActiveCampaign")
	return d.Store.GetActiveCampaign(ctx)
}

func (d *deadlineStore) CreateContribution(ctx context.Context, c *models.Contribution) error {
	d.note(ctx, "CreateContribution")
	return d.Store.CreateContribution(ctx, c)
}

func (d *deadlineStore) MarkProcessed(ctx context.Context, id primitive.ObjectID) error {
	d.note(ctx, "MarkProcessed")
	return d.Store.MarkProcessed(ctx, id)
}

func (d *deadlineStore) ListContributions(ctx context.Context, f models.ContributionFilter) ([]models.Contribution, error) {
	d.note(ctx, "ListContributions")
	return d.Store.ListContributions(ctx, f)
}

func (d *deadlineStore) CreateLog(ctx context.Context, l *models.SystemLog) error {
	d.note(ctx, "CreateLog")
	return d.Store.CreateLog(ctx, l)
}

func TestStoreCallsAreBounded(t *testing.T) {
	s := newStore(t)
	activeCampaign(t, s)
	ds := &deadlineStore{Store: s, bounded: map[string]bool{}}
	integrations := &fakeIntegrations{exporters: []Exporter{&fakeExporter{name: "Google Sheets"}}}
	ing := newIngestor(ds, &recordingHub{}, integrations)

	// no deadline on the caller's context
	res, err := ing.HandleSMS(context.Background(), SMSPayload{
		Message: "XYZ1A2 Confirmed. You have received Ksh1,500.00 from JOHN DOE 07001 on 12/5/24",
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, res.Outcome)

	_, err = ing.ExportPending(context.Background())
	require.NoError(t, err)

	for _, method := range []string{"GetActiveCampaign", "CreateContribution", "MarkProcessed", "ListContributions", "CreateLog"} {
		t.Run(method, func(t *testing.T) {
			bounded, called := ds.bounded[method]
			require.True(t, called)
			assert.True(t, bounded)
		})
	}
}

func TestCreateManual(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	activeCampaign(t, s)
	hub := &recordingHub{}
	ing := newIngestor(s, hub, nil)

	res, err := ing.CreateManual(ctx, ManualContribution{
		SenderName: "grace wanjiku", Amount: 2000, PhoneNumber: "254700111222",
		ReceiptURL: "https://res.cloudinary.com/demo/image/upload/receipts/r1.jpg",
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, res.Outcome)
	assert.Equal(t, "Grace Wanjiku", res.Contribution.SenderName)
	assert.Equal(t, "254700111222", res.Contribution.MemberID)
	assert.Equal(t, models.SourceManual, res.Contribution.Source)
	assert.Equal(t, "Manual", res.Contribution.Platform)
	assert.NotEmpty(t, res.Contribution.ReceiptURL)
	assert.Len(t, hub.events, 1)

	_, err = ing.CreateManual(ctx, ManualContribution{SenderName: "x", Amount: 0})
	assert.Error(t, err)
}

func TestBroadcastReachesEveryOpenConnection(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	activeCampaign(t, s)
	hub := broadcast.NewHub(nil)
	conns := []*liveConn{newLiveConn(), newLiveConn(), newLiveConn()}
	for _, c := range conns {
		hub.Register(c)
	}
	ing := newIngestor(s, hub, nil)

	res, err := ing.HandleSMS(ctx, SMSPayload{
		Message: "XYZ1A2 Confirmed. You have received Ksh1,500.00 from JOHN DOE 07001 on 12/5/24",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Delivered)

	for _, c := range conns {
		msgs := c.messages()
		require.Len(t, msgs, 1)
		var ev struct {
			Type string `json:"type"`
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(msgs[0], &ev))
		assert.Equal(t, broadcast.EventNewContribution, ev.Type)
		assert.Equal(t, res.Contribution.ID.Hex(), ev.Data.ID)
	}
}

func whatsAppEnvelope(from, body string) parser.WhatsAppEnvelope {
	msg := parser.WhatsAppMessage{From: from, Type: "text"}
	msg.Text = &struct {
		Body string `json:"body"`
	}{Body: body}
	return parser.WhatsAppEnvelope{
		Object: "whatsapp_business_account",
		Entry: []parser.WhatsAppEntry{{
			Changes: []parser.WhatsAppChange{{
				Value: parser.WhatsAppValue{Messages: []parser.WhatsAppMessage{msg}},
			}},
		}},
	}
}

// liveConn is an open websocket stand-in.
type liveConn struct {
	mu     sync.Mutex
	writes [][]byte
	closed chan struct{}
	once   sync.Once
}

func newLiveConn() *liveConn { return &liveConn{closed: make(chan struct{})} }

func (c *liveConn) ReadMessage() (int, []byte, error) {
	<-c.closed
	return 0, nil, errors.New("closed")
}

func (c *liveConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, append([]byte(nil), data...))
	return nil
}

func (c *liveConn) SetWriteDeadline(time.Time) error { return nil }

func (c *liveConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *liveConn) messages() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.writes...)
}
