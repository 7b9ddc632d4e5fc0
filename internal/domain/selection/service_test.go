package selection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	byID    map[string]*Selection
	created []*Selection
}

func newMemRepo() *memRepo {
	return &memRepo{byID: map[string]*Selection{}}
}

func (m *memRepo) Create(_ context.Context, s *Selection) error {
	m.byID[s.ID] = s
	m.created = append(m.created, s)
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (*Selection, error) {
	s, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *memRepo) ListPending(_ context.Context) ([]Selection, error) {
	var out []Selection
	for _, s := range m.byID {
		if s.Status == StatusPending {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memRepo) List(_ context.Context) ([]Selection, error) {
	var out []Selection
	for _, s := range m.byID {
		out = append(out, *s)
	}
	return out, nil
}

func (m *memRepo) MarkProcessed(_ context.Context, id string) (*Selection, error) {
	s, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if s.Status != StatusPending {
		return nil, &AlreadyProcessedError{SelectionID: id}
	}
	s.Status = StatusProcessed
	return s, nil
}

func validLines() []Line {
	return []Line{{ProductID: "p1", Name: "Green Tea", Quantity: 2}}
}

func TestSubmit(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	fixedNow := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixedNow }

	sel, err := svc.Submit(context.Background(),
		Contact{Name: "Ada", Phone: "+15550001", Email: "ada@example.com"},
		validLines(),
	)
	require.NoError(t, err)

	assert.NotEmpty(t, sel.ID)
	assert.Equal(t, StatusPending, sel.Status)
	assert.Equal(t, fixedNow, sel.CreatedAt)
	require.Len(t, repo.created, 1)
	assert.Same(t, sel, repo.created[0])
}

func TestSubmit_Validation(t *testing.T) {
	svc := NewService(newMemRepo())

	tests := []struct {
		name    string
		contact Contact
		lines   []Line
		wantErr error
	}{
		{
			name:    "missing name",
			contact: Contact{Phone: "+15550001"},
			lines:   validLines(),
			wantErr: ErrNameRequired,
		},
		{
			name:    "missing phone",
			contact: Contact{Name: "Ada"},
			lines:   validLines(),
			wantErr: ErrPhoneRequired,
		},
		{
			name:    "no lines",
			contact: Contact{Name: "Ada", Phone: "+15550001"},
			wantErr: ErrEmptyLines,
		},
		{
			name:    "zero quantity",
			contact: Contact{Name: "Ada", Phone: "+15550001"},
			lines:   []Line{{ProductID: "p1", Quantity: 0}},
			wantErr: ErrInvalidQuantity,
		},
		{
			name:    "negative quantity",
			contact: Contact{Name: "Ada", Phone: "+15550001"},
			lines:   []Line{{ProductID: "p1", Quantity: -1}},
			wantErr: ErrInvalidQuantity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), tt.contact, tt.lines)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestListPending_ExcludesProcessed(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)

	a, err := svc.Submit(context.Background(), Contact{Name: "A", Phone: "1"}, validLines())
	require.NoError(t, err)
	b, err := svc.Submit(context.Background(), Contact{Name: "B", Phone: "2"}, validLines())
	require.NoError(t, err)

	_, err = repo.MarkProcessed(context.Background(), a.ID)
	require.NoError(t, err)

	pending, err := svc.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b.ID, pending[0].ID)

	// Processed selections stay retrievable for audit.
	all, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)

	got, err := svc.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, got.Status)
}
