package checkout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/francopicc/ameba/app/models"
	"github.com/francopicc/ameba/app/repository"
	"github.com/francopicc/ameba/internal/pkg/apperror"
	"github.com/francopicc/ameba/internal/pkg/terminal"
)

type fixture struct {
	repos     *repository.Repositories
	now       time.Time
	terminals *terminal.Service
	client    *models.Client
	other     *models.Client
	product   *models.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		repos: repository.NewMemoryRepositories(),
		now:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	f.terminals = terminal.NewService(f.repos, terminal.WithClock(func() time.Time { return f.now }))

	owner, err := models.NewIdentity("Owner", "owner@example.com", "")
	require.NoError(t, err)
	require.NoError(t, f.repos.Identity.Create(ctx, owner))

	f.client = &models.Client{Name: "Acme", OwnerID: owner.ID}
	require.NoError(t, f.repos.Client.CreateWithQuota(ctx, f.client, models.MaxClientsPerOwner))
	f.other = &models.Client{Name: "Other", OwnerID: owner.ID}
	require.NoError(t, f.repos.Client.CreateWithQuota(ctx, f.other, models.MaxClientsPerOwner))

	f.product = &models.Product{OwnerID: f.client.ID, Name: "Widget", Description: "A widget", Amount: 9.99}
	require.NoError(t, f.repos.Product.Create(ctx, f.product))
	return f
}

func (f *fixture) service(sandbox bool) *Service {
	return NewService(f.repos, f.terminals, WithSandbox(sandbox))
}

func (f *fixture) request() CreatePaymentRequest {
	return CreatePaymentRequest{
		ClientID:    f.client.ID,
		Amount:      9.99,
		CallbackURL: "https://shop.example.com/done",
	}
}

func TestCreatePaymentValidation(t *testing.T) {
	f := newFixture(t)
	svc := f.service(false)

	tests := []struct {
		name   string
		mutate func(*CreatePaymentRequest)
		kind   apperror.Kind
	}{
		{"missing client", func(r *CreatePaymentRequest) { r.ClientID = "" }, apperror.KindValidation},
		{"zero amount", func(r *CreatePaymentRequest) { r.Amount = 0 }, apperror.KindValidation},
		{"missing callback", func(r *CreatePaymentRequest) { r.CallbackURL = "" }, apperror.KindValidation},
		{"bad email", func(r *CreatePaymentRequest) { r.Email = "nope" }, apperror.KindValidation},
		{"unknown client", func(r *CreatePaymentRequest) { r.ClientID = "missing" }, apperror.KindNotFound},
		{"unknown product", func(r *CreatePaymentRequest) { r.ProductID = "missing" }, apperror.KindNotFound},
		{"foreign product", func(r *CreatePaymentRequest) { r.ClientID = f.other.ID; r.ProductID = f.product.ID }, apperror.KindAuthorization},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.request()
			tt.mutate(&req)
			_, err := svc.CreatePayment(context.Background(), req)
			assert.True(t, apperror.Is(err, tt.kind), "got %v", err)
		})
	}
}

func TestCreatePaymentStatusDependsOnSandbox(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	p, err := f.service(false).CreatePayment(ctx, f.request())
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, p.Status)
	assert.Equal(t, models.DefaultCurrency, p.Currency)

	p, err = f.service(true).CreatePayment(ctx, f.request())
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusApproved, p.Status)
}

func TestCreatePaymentThroughTerminalSandbox(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.service(true)

	term, err := f.terminals.CreateTerminal(ctx, f.product.ID)
	require.NoError(t, err)

	req := f.request()
	req.TerminalID = term.URLID
	p, err := svc.CreatePayment(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, p.ProductID)
	assert.Equal(t, f.product.ID, *p.ProductID)
	assert.Equal(t, term.ID, *p.TerminalID)

	stored, err := f.repos.Terminal.GetByID(ctx, term.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TerminalStatusApproved, stored.Status)

	// a used link takes no second payment
	_, err = svc.CreatePayment(ctx, req)
	assert.True(t, apperror.Is(err, apperror.KindConflict))
}

func TestCreatePaymentThroughTerminalChecks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.service(false)

	term, err := f.terminals.CreateTerminal(ctx, f.product.ID)
	require.NoError(t, err)

	req := f.request()
	req.ClientID = f.other.ID
	req.TerminalID = term.URLID
	_, err = svc.CreatePayment(ctx, req)
	assert.True(t, apperror.Is(err, apperror.KindAuthorization))

	f.now = f.now.Add(61 * time.Minute)
	req.ClientID = f.client.ID
	_, err = svc.CreatePayment(ctx, req)
	assert.True(t, apperror.Is(err, apperror.KindConflict))
}

func TestApplyProviderResult(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.service(false)

	term, err := f.terminals.CreateTerminal(ctx, f.product.ID)
	require.NoError(t, err)
	req := f.request()
	req.TerminalID = term.URLID
	p, err := svc.CreatePayment(ctx, req)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusPending, p.Status)

	settled, err := svc.ApplyProviderResult(ctx, p.ID, models.PaymentStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusApproved, settled.Status)

	// replays are harmless
	_, err = svc.ApplyProviderResult(ctx, p.ID, models.PaymentStatusApproved)
	require.NoError(t, err)

	_, err = svc.ApplyProviderResult(ctx, p.ID, models.PaymentStatusRejected)
	assert.True(t, apperror.Is(err, apperror.KindConflict))

	stored, err := f.repos.Terminal.GetByID(ctx, term.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TerminalStatusApproved, stored.Status)

	_, err = svc.ApplyProviderResult(ctx, "missing", models.PaymentStatusApproved)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
	_, err = svc.ApplyProviderResult(ctx, p.ID, "refunded")
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestApplyProviderRejection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.service(false)

	term, err := f.terminals.CreateTerminal(ctx, f.product.ID)
	require.NoError(t, err)
	req := f.request()
	req.TerminalID = term.URLID
	p, err := svc.CreatePayment(ctx, req)
	require.NoError(t, err)

	_, err = svc.ApplyProviderResult(ctx, p.ID, models.PaymentStatusRejected)
	require.NoError(t, err)

	stored, err := f.repos.Terminal.GetByID(ctx, term.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TerminalStatusRejected, stored.Status)
}

func TestCreatePaymentThroughTerminalOnePending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.service(false)

	term, err := f.terminals.CreateTerminal(ctx, f.product.ID)
	require.NoError(t, err)
	req := f.request()
	req.TerminalID = term.URLID

	first, err := svc.CreatePayment(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, first.Status)

	_, err = svc.CreatePayment(ctx, req)
	require.True(t, apperror.Is(err, apperror.KindConflict))
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "not_active:pending", appErr.Details)

	payments, err := f.repos.Payment.ListByClient(ctx, f.client.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestApplyProviderResultForeignPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.service(false)

	term, err := f.terminals.CreateTerminal(ctx, f.product.ID)
	require.NoError(t, err)
	req := f.request()
	req.TerminalID = term.URLID
	held, err := svc.CreatePayment(ctx, req)
	require.NoError(t, err)

	// a row pointing at the terminal without holding it
	stray := &models.Payment{
		ClientID:    f.client.ID,
		TerminalID:  &term.ID,
		Amount:      9.99,
		Currency:    models.DefaultCurrency,
		CallbackURL: "https://shop.example.com/done",
		Status:      models.PaymentStatusPending,
	}
	require.NoError(t, f.repos.Payment.Create(ctx, stray))

	_, err = svc.ApplyProviderResult(ctx, held.ID, models.PaymentStatusApproved)
	require.NoError(t, err)

	_, err = svc.ApplyProviderResult(ctx, stray.ID, models.PaymentStatusApproved)
	assert.True(t, apperror.Is(err, apperror.KindConflict))

	got, err := f.repos.Payment.GetByID(ctx, stray.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, got.Status, "a refused result leaves the payment untouched")

	stats, err := svc.Stats(ctx, f.client.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalSales)
}

func TestApplyProviderResultAfterDeadline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.service(false)

	term, err := f.terminals.CreateTerminal(ctx, f.product.ID)
	require.NoError(t, err)
	req := f.request()
	req.TerminalID = term.URLID
	p, err := svc.CreatePayment(ctx, req)
	require.NoError(t, err)

	f.now = f.now.Add(61 * time.Minute)

	settled, err := svc.ApplyProviderResult(ctx, p.ID, models.PaymentStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusApproved, settled.Status)

	_, err = svc.ApplyProviderResult(ctx, p.ID, models.PaymentStatusApproved)
	require.NoError(t, err)

	stored, err := f.repos.Terminal.GetByID(ctx, term.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TerminalStatusApproved, stored.Status)
}

// staleTerminals serves the terminal as it looked when the link was opened.
type staleTerminals struct {
	repository.TerminalRepository
	snapshot models.Terminal
}

func (s *staleTerminals) GetByURLID(ctx context.Context, urlID string) (*models.Terminal, error) {
	cp := s.snapshot
	return &cp, nil
}

func TestCreatePaymentWithStaleTerminalRead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	term, err := f.terminals.CreateTerminal(ctx, f.product.ID)
	require.NoError(t, err)

	stale := *f.repos
	stale.Terminal = &staleTerminals{TerminalRepository: f.repos.Terminal, snapshot: *term}
	terminals := terminal.NewService(&stale, terminal.WithClock(func() time.Time { return f.now }))
	svc := NewService(&stale, terminals, WithSandbox(true))

	req := f.request()
	req.TerminalID = term.URLID
	_, err = svc.CreatePayment(ctx, req)
	require.NoError(t, err)

	_, err = svc.CreatePayment(ctx, req)
	assert.True(t, apperror.Is(err, apperror.KindConflict))

	stats, err := svc.Stats(ctx, f.client.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalSales)
}

func TestConcurrentSandboxPaymentsThroughTerminal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.service(true)

	term, err := f.terminals.CreateTerminal(ctx, f.product.ID)
	require.NoError(t, err)
	req := f.request()
	req.TerminalID = term.URLID

	const workers = 16
	var (
		wg        sync.WaitGroup
		created   atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreatePayment(ctx, req)
			switch {
			case err == nil:
				created.Add(1)
			case apperror.Is(err, apperror.KindConflict):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, created.Load())
	assert.EqualValues(t, workers-1, conflicts.Load())

	stats, err := svc.Stats(ctx, f.client.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalSales)

	stored, err := f.repos.Terminal.GetByID(ctx, term.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TerminalStatusApproved, stored.Status)
}

func TestConcurrentProviderResults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.service(false)

	term, err := f.terminals.CreateTerminal(ctx, f.product.ID)
	require.NoError(t, err)
	req := f.request()
	req.TerminalID = term.URLID
	p, err := svc.CreatePayment(ctx, req)
	require.NoError(t, err)

	const workers = 16
	var (
		wg       sync.WaitGroup
		approved atomic.Int32
		rejected atomic.Int32
	)
	for i := 0; i < workers; i++ {
		status := models.PaymentStatusApproved
		if i%2 == 1 {
			status = models.PaymentStatusRejected
		}
		wg.Add(1)
		go func(status string) {
			defer wg.Done()
			settled, err := svc.ApplyProviderResult(ctx, p.ID, status)
			if err != nil {
				assert.True(t, apperror.Is(err, apperror.KindConflict), "got %v", err)
				return
			}
			if settled.Status == models.PaymentStatusApproved {
				approved.Add(1)
			} else {
				rejected.Add(1)
			}
		}(status)
	}
	wg.Wait()

	// every successful call agrees on one outcome
	assert.True(t, approved.Load() == 0 || rejected.Load() == 0)
	assert.Positive(t, approved.Load()+rejected.Load())

	got, err := f.repos.Payment.GetByID(ctx, p.ID)
	require.NoError(t, err)
	stored, err := f.repos.Terminal.GetByID(ctx, term.ID)
	require.NoError(t, err)
	if got.Status == models.PaymentStatusApproved {
		assert.Equal(t, models.TerminalStatusApproved, stored.Status)
	} else {
		assert.Equal(t, models.PaymentStatusRejected, got.Status)
		assert.Equal(t, models.TerminalStatusRejected, stored.Status)
	}
}

// failingPayments refuses every insert.
type failingPayments struct {
	repository.PaymentRepository
}

func (failingPayments) Create(ctx context.Context, payment *models.Payment) error {
	return errors.New("insert failed")
}

func TestCreatePaymentReleasesTerminalOnInsertError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	term, err := f.terminals.CreateTerminal(ctx, f.product.ID)
	require.NoError(t, err)
	req := f.request()
	req.TerminalID = term.URLID

	broken := *f.repos
	broken.Payment = failingPayments{PaymentRepository: f.repos.Payment}
	_, err = NewService(&broken, f.terminals).CreatePayment(ctx, req)
	assert.True(t, apperror.Is(err, apperror.KindStore))

	p, err := f.service(false).CreatePayment(ctx, req)
	require.NoError(t, err, "the link is free again")
	assert.Equal(t, term.ID, *p.TerminalID)
}

func TestListPaymentsAndStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sandbox := f.service(true)
	live := f.service(false)

	req := f.request()
	req.ProductID = f.product.ID
	_, err := sandbox.CreatePayment(ctx, req)
	require.NoError(t, err)

	req = f.request()
	req.Amount = 20
	_, err = sandbox.CreatePayment(ctx, req)
	require.NoError(t, err)

	_, err = live.CreatePayment(ctx, f.request())
	require.NoError(t, err)

	rows, err := live.ListPayments(ctx, f.client.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "-", rows[0].ProductName)
	assert.Equal(t, "Widget", rows[2].ProductName)

	stats, err := live.Stats(ctx, f.client.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalSales)
	assert.InDelta(t, 29.99, stats.TotalRevenue, 0.001)
	assert.Equal(t, 1, stats.Pending)

	empty, err := live.Stats(ctx, f.other.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TotalSales)
}
