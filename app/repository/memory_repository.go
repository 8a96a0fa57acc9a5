package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/francopicc/ameba/app/models"
)

// memoryStore keeps every table behind one lock, which gives the same
// single-statement atomicity the SQL driver provides. It backs DB_DRIVER=memory
// and the package tests.
type memoryStore struct {
	mu               sync.RWMutex
	identities       map[string]*models.Identity
	providerAccounts map[string]*models.ProviderAccount
	clients          map[string]*models.Client
	products         map[string]*models.Product
	payments         map[string]*models.Payment
	terminals        map[string]*models.Terminal
	nextAccountID    uint
	now              func() time.Time
	last             time.Time
}

// tick returns a strictly increasing creation timestamp so that "oldest
// first" ordering is stable even within one clock tick. Callers hold mu.
func (s *memoryStore) tick() time.Time {
	t := s.now()
	if !t.After(s.last) {
		t = s.last.Add(time.Nanosecond)
	}
	s.last = t
	return t
}

// NewMemoryRepositories creates repositories sharing one in-memory store.
func NewMemoryRepositories() *Repositories {
	s := &memoryStore{
		identities:       make(map[string]*models.Identity),
		providerAccounts: make(map[string]*models.ProviderAccount),
		clients:          make(map[string]*models.Client),
		products:         make(map[string]*models.Product),
		payments:         make(map[string]*models.Payment),
		terminals:        make(map[string]*models.Terminal),
		now:              time.Now,
	}
	return &Repositories{
		Identity: &memoryIdentityRepository{s},
		Client:   &memoryClientRepository{s},
		Product:  &memoryProductRepository{s},
		Payment:  &memoryPaymentRepository{s},
		Terminal: &memoryTerminalRepository{s},
	}
}

func copyMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

type memoryIdentityRepository struct{ s *memoryStore }

func (r *memoryIdentityRepository) Create(ctx context.Context, identity *models.Identity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if identity.ID == "" {
		identity.ID = uuid.NewString()
	}
	for _, existing := range r.s.identities {
		if strings.EqualFold(existing.Email, identity.Email) {
			return gorm.ErrDuplicatedKey
		}
	}
	now := r.s.now()
	identity.CreatedAt, identity.UpdatedAt = now, now
	if identity.Metadata == nil {
		identity.Metadata = map[string]string{}
	}
	cp := *identity
	cp.Metadata = copyMetadata(identity.Metadata)
	r.s.identities[identity.ID] = &cp
	return nil
}

func (r *memoryIdentityRepository) GetByID(ctx context.Context, id string) (*models.Identity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	identity, ok := r.s.identities[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *identity
	cp.Metadata = copyMetadata(identity.Metadata)
	return &cp, nil
}

func (r *memoryIdentityRepository) GetByEmail(ctx context.Context, email string) (*models.Identity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, identity := range r.s.identities {
		if identity.Email == email {
			cp := *identity
			cp.Metadata = copyMetadata(identity.Metadata)
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memoryIdentityRepository) PatchMetadata(ctx context.Context, id string, patch map[string]string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	identity, ok := r.s.identities[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	merged := copyMetadata(identity.Metadata)
	for k, v := range patch {
		merged[k] = v
	}
	identity.Metadata = merged
	identity.UpdatedAt = r.s.now()
	return nil
}

func (r *memoryIdentityRepository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if identity, ok := r.s.identities[id]; ok {
		t := at
		identity.LastLoginAt = &t
	}
	return nil
}

func providerKey(provider, providerUserID string) string {
	return provider + "\x00" + providerUserID
}

func (r *memoryIdentityRepository) GetProviderAccount(ctx context.Context, provider, providerUserID string) (*models.ProviderAccount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	pa, ok := r.s.providerAccounts[providerKey(provider, providerUserID)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *pa
	return &cp, nil
}

func (r *memoryIdentityRepository) SaveProviderAccount(ctx context.Context, account *models.ProviderAccount) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if account.ID == 0 {
		r.s.nextAccountID++
		account.ID = r.s.nextAccountID
		account.CreatedAt = r.s.now()
	}
	account.UpdatedAt = r.s.now()
	cp := *account
	r.s.providerAccounts[providerKey(account.Provider, account.ProviderUserID)] = &cp
	return nil
}

type memoryClientRepository struct{ s *memoryStore }

func (r *memoryClientRepository) GetByID(ctx context.Context, id string) (*models.Client, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	client, ok := r.s.clients[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *client
	return &cp, nil
}

func (r *memoryClientRepository) GetByAPIKeyHash(ctx context.Context, hash string) (*models.Client, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if hash == "" {
		return nil, gorm.ErrRecordNotFound
	}
	for _, client := range r.s.clients {
		if client.APIKeyHash == hash {
			cp := *client
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memoryClientRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Client, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.listLocked(ownerID), nil
}

func (r *memoryClientRepository) listLocked(ownerID string) []models.Client {
	clients := make([]models.Client, 0)
	for _, c := range r.s.clients {
		if c.OwnerID == ownerID {
			clients = append(clients, *c)
		}
	}
	sort.Slice(clients, func(i, j int) bool {
		if clients[i].CreatedAt.Equal(clients[j].CreatedAt) {
			return clients[i].ID < clients[j].ID
		}
		return clients[i].CreatedAt.Before(clients[j].CreatedAt)
	})
	return clients
}

func (r *memoryClientRepository) CreateWithQuota(ctx context.Context, client *models.Client, max int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.identities[client.OwnerID]; !ok {
		return gorm.ErrRecordNotFound
	}
	if len(r.listLocked(client.OwnerID)) >= max {
		return ErrQuotaExceeded
	}
	if client.ID == "" {
		client.ID = uuid.NewString()
	}
	client.CreatedAt = r.s.tick()
	cp := *client
	r.s.clients[client.ID] = &cp
	return nil
}

type memoryProductRepository struct{ s *memoryStore }

func (r *memoryProductRepository) Create(ctx context.Context, product *models.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	if product.Status == "" {
		product.Status = models.ProductStatusActive
	}
	now := r.s.tick()
	product.CreatedAt, product.UpdatedAt = now, now
	cp := *product
	r.s.products[product.ID] = &cp
	return nil
}

func (r *memoryProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	product, ok := r.s.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *product
	return &cp, nil
}

func (r *memoryProductRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	products := make([]models.Product, 0)
	for _, p := range r.s.products {
		if p.OwnerID == ownerID {
			products = append(products, *p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].CreatedAt.After(products[j].CreatedAt) })
	return products, nil
}

func (r *memoryProductRepository) UpdateOwned(ctx context.Context, ownerID, id string, upd ProductUpdate) (*models.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	product, ok := r.s.products[id]
	if !ok || product.OwnerID != ownerID {
		return nil, gorm.ErrRecordNotFound
	}
	product.Name = upd.Name
	product.Description = upd.Description
	product.Amount = upd.Amount
	product.UpdatedAt = r.s.now()
	cp := *product
	return &cp, nil
}

func (r *memoryProductRepository) DeleteOwned(ctx context.Context, ownerID, id string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	product, ok := r.s.products[id]
	if !ok || product.OwnerID != ownerID {
		return 0, nil
	}
	delete(r.s.products, id)
	return 1, nil
}

type memoryPaymentRepository struct{ s *memoryStore }

func (r *memoryPaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := r.s.tick()
	payment.CreatedAt, payment.UpdatedAt = now, now
	cp := *payment
	r.s.payments[payment.ID] = &cp
	return nil
}

func (r *memoryPaymentRepository) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	payment, ok := r.s.payments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *payment
	return &cp, nil
}

func (r *memoryPaymentRepository) ListByClient(ctx context.Context, clientID string) ([]models.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	payments := make([]models.Payment, 0)
	for _, p := range r.s.payments {
		if p.ClientID == clientID {
			payments = append(payments, *p)
		}
	}
	sort.Slice(payments, func(i, j int) bool { return payments[i].CreatedAt.After(payments[j].CreatedAt) })
	return payments, nil
}

func (r *memoryPaymentRepository) TransitionStatus(ctx context.Context, id, from, to string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	payment, ok := r.s.payments[id]
	if !ok || payment.Status != from {
		return false, nil
	}
	payment.Status = to
	payment.UpdatedAt = r.s.now()
	return true, nil
}

type memoryTerminalRepository struct{ s *memoryStore }

func (r *memoryTerminalRepository) Create(ctx context.Context, terminal *models.Terminal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if terminal.ID == "" {
		terminal.ID = uuid.NewString()
	}
	for _, existing := range r.s.terminals {
		if existing.URLID == terminal.URLID {
			return gorm.ErrDuplicatedKey
		}
	}
	cp := *terminal
	r.s.terminals[terminal.ID] = &cp
	return nil
}

func (r *memoryTerminalRepository) GetByID(ctx context.Context, id string) (*models.Terminal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	terminal, ok := r.s.terminals[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *terminal
	return &cp, nil
}

func (r *memoryTerminalRepository) GetByURLID(ctx context.Context, urlID string) (*models.Terminal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, terminal := range r.s.terminals {
		if terminal.URLID == urlID {
			cp := *terminal
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memoryTerminalRepository) Claim(ctx context.Context, id, paymentID string, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	terminal, ok := r.s.terminals[id]
	if !ok || terminal.Status != models.TerminalStatusActive || terminal.PaymentID != nil {
		return false, nil
	}
	if terminal.ExpiresAt.Before(now) {
		return false, nil
	}
	claimed := paymentID
	terminal.PaymentID = &claimed
	return true, nil
}

func (r *memoryTerminalRepository) Release(ctx context.Context, id, paymentID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	terminal, ok := r.s.terminals[id]
	if ok && terminal.Status == models.TerminalStatusActive && terminal.ClaimedBy(paymentID) {
		terminal.PaymentID = nil
	}
	return nil
}

func (r *memoryTerminalRepository) Settle(ctx context.Context, id, paymentID, to string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	terminal, ok := r.s.terminals[id]
	if !ok || terminal.Status != models.TerminalStatusActive || !terminal.ClaimedBy(paymentID) {
		return false, nil
	}
	terminal.Status = to
	return true, nil
}
