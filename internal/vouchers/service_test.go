package vouchers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryJournal struct {
	id     int64
	status string
	lines  int
}

type memoryVoucherRepo struct {
	mu         sync.Mutex
	sequences  map[VoucherType]int64
	vouchers   map[int64]*Voucher
	lines      map[int64][]VoucherLine
	journals   map[int64]*memoryJournal
	nextID     int64
	nextLineID int64
	nextJrnID  int64
}

func newMemoryVoucherRepo() *memoryVoucherRepo {
	return &memoryVoucherRepo{
		sequences: make(map[VoucherType]int64),
		vouchers:  make(map[int64]*Voucher),
		lines:     make(map[int64][]VoucherLine),
		journals:  make(map[int64]*memoryJournal),
	}
}

// WithTx serialises callers with a mutex, mimicking the exclusive counter
// row lock a real transaction would take.
func (r *memoryVoucherRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, r)
}

func (r *memoryVoucherRepo) NextSequenceNumber(ctx context.Context, t VoucherType) (int64, error) {
	r.sequences[t]++
	return r.sequences[t], nil
}

func (r *memoryVoucherRepo) InsertVoucher(ctx context.Context, in DraftInput, number string) (Voucher, error) {
	r.nextID++
	v := Voucher{
		ID:        r.nextID,
		Number:    number,
		Type:      in.Type,
		Status:    VoucherStatusDraft,
		Date:      in.Date,
		Payee:     in.Payee,
		BranchID:  in.BranchID,
		CreatedBy: in.CreatedBy,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	r.vouchers[v.ID] = &v
	return v, nil
}

func (r *memoryVoucherRepo) InsertVoucherLines(ctx context.Context, voucherID int64, lines []LineInput) error {
	for _, line := range lines {
		r.nextLineID++
		r.lines[voucherID] = append(r.lines[voucherID], VoucherLine{
			ID:           r.nextLineID,
			VoucherID:    voucherID,
			AccountID:    line.AccountID,
			CostCenterID: line.CostCenterID,
			Debit:        line.Debit,
			Credit:       line.Credit,
			LineType:     line.LineType,
		})
	}
	return nil
}

func (r *memoryVoucherRepo) GetVoucherForUpdate(ctx context.Context, voucherID int64) (Voucher, error) {
	v, ok := r.vouchers[voucherID]
	if !ok {
		return Voucher{}, ErrVoucherNotFound
	}
	return *v, nil
}

func (r *memoryVoucherRepo) GetVoucherWithLines(ctx context.Context, voucherID int64) (Voucher, []VoucherLine, error) {
	v, ok := r.vouchers[voucherID]
	if !ok {
		return Voucher{}, nil, ErrVoucherNotFound
	}
	return *v, r.lines[voucherID], nil
}

func (r *memoryVoucherRepo) MarkVoucherPosted(ctx context.Context, voucherID, journalID, approvedBy int64, approvedAt time.Time) error {
	v, ok := r.vouchers[voucherID]
	if !ok {
		return ErrVoucherNotFound
	}
	v.Status = VoucherStatusPosted
	v.JournalID = &journalID
	v.ApprovedBy = &approvedBy
	v.ApprovedAt = &approvedAt
	return nil
}

func (r *memoryVoucherRepo) MarkVoucherCancelled(ctx context.Context, voucherID int64) error {
	v, ok := r.vouchers[voucherID]
	if !ok {
		return ErrVoucherNotFound
	}
	v.Status = VoucherStatusCancelled
	return nil
}

func (r *memoryVoucherRepo) InsertPostedJournal(ctx context.Context, v Voucher, lines []VoucherLine, postedBy int64, postedAt time.Time) (int64, error) {
	r.nextJrnID++
	r.journals[r.nextJrnID] = &memoryJournal{id: r.nextJrnID, status: "POSTED", lines: len(lines)}
	return r.nextJrnID, nil
}

func (r *memoryVoucherRepo) MarkJournalVoid(ctx context.Context, journalID int64) error {
	j, ok := r.journals[journalID]
	if !ok {
		return ErrVoucherNotFound
	}
	j.status = "VOID"
	return nil
}

func draftReceipt() DraftInput {
	return DraftInput{
		Type:      VoucherTypeReceipt,
		Date:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Payee:     "Student A",
		CreatedBy: 7,
		Lines: []LineInput{
			{AccountID: 1, Debit: 150, LineType: LineTypeCash},
			{AccountID: 2, Credit: 150, LineType: LineTypeReceivable},
		},
	}
}

func TestCreateDraftAllocatesNumber(t *testing.T) {
	repo := newMemoryVoucherRepo()
	svc := NewService(repo, nil)

	first, err := svc.CreateDraft(context.Background(), draftReceipt())
	require.NoError(t, err)
	require.Equal(t, "RV-000001", first.Number)
	require.Equal(t, VoucherStatusDraft, first.Status)
	require.Len(t, first.Lines, 2)

	second, err := svc.CreateDraft(context.Background(), draftReceipt())
	require.NoError(t, err)
	require.Equal(t, "RV-000002", second.Number)
}

func TestCreateDraftSequencesPerType(t *testing.T) {
	repo := newMemoryVoucherRepo()
	svc := NewService(repo, nil)

	receipt, err := svc.CreateDraft(context.Background(), draftReceipt())
	require.NoError(t, err)

	payment := draftReceipt()
	payment.Type = VoucherTypePayment
	created, err := svc.CreateDraft(context.Background(), payment)
	require.NoError(t, err)

	require.Equal(t, "RV-000001", receipt.Number)
	require.Equal(t, "PV-000001", created.Number)
}

func TestCreateDraftRejectsInvalidType(t *testing.T) {
	repo := newMemoryVoucherRepo()
	svc := NewService(repo, nil)

	input := draftReceipt()
	input.Type = VoucherType("REFUND")
	_, err := svc.CreateDraft(context.Background(), input)
	require.ErrorIs(t, err, ErrInvalidType)
}

func TestPostCreatesPostedJournal(t *testing.T) {
	repo := newMemoryVoucherRepo()
	svc := NewService(repo, nil)

	draft, err := svc.CreateDraft(context.Background(), draftReceipt())
	require.NoError(t, err)

	posted, err := svc.Post(context.Background(), draft.ID, 9)
	require.NoError(t, err)
	require.Equal(t, VoucherStatusPosted, posted.Status)
	require.NotNil(t, posted.JournalID)
	require.Equal(t, "POSTED", repo.journals[*posted.JournalID].status)
	require.Equal(t, 2, repo.journals[*posted.JournalID].lines)
	require.NotNil(t, posted.ApprovedBy)
	require.Equal(t, int64(9), *posted.ApprovedBy)
}

func TestPostUnbalancedVoucherFails(t *testing.T) {
	repo := newMemoryVoucherRepo()
	svc := NewService(repo, nil)

	input := draftReceipt()
	input.Lines[1].Credit = 120
	draft, err := svc.CreateDraft(context.Background(), input)
	require.NoError(t, err)

	_, err = svc.Post(context.Background(), draft.ID, 9)
	require.ErrorIs(t, err, ErrUnbalanced)
	require.Equal(t, VoucherStatusDraft, repo.vouchers[draft.ID].Status)
	require.Empty(t, repo.journals)
}

func TestPostTwiceFails(t *testing.T) {
	repo := newMemoryVoucherRepo()
	svc := NewService(repo, nil)

	draft, err := svc.CreateDraft(context.Background(), draftReceipt())
	require.NoError(t, err)
	_, err = svc.Post(context.Background(), draft.ID, 9)
	require.NoError(t, err)

	_, err = svc.Post(context.Background(), draft.ID, 9)
	require.ErrorIs(t, err, ErrNotDraft)
}

func TestCancelVoidsJournal(t *testing.T) {
	repo := newMemoryVoucherRepo()
	svc := NewService(repo, nil)

	draft, err := svc.CreateDraft(context.Background(), draftReceipt())
	require.NoError(t, err)
	posted, err := svc.Post(context.Background(), draft.ID, 9)
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), posted.ID, 9)
	require.NoError(t, err)
	require.Equal(t, VoucherStatusCancelled, cancelled.Status)
	require.Equal(t, "VOID", repo.journals[*posted.JournalID].status)
}

func TestCancelDraftFails(t *testing.T) {
	repo := newMemoryVoucherRepo()
	svc := NewService(repo, nil)

	draft, err := svc.CreateDraft(context.Background(), draftReceipt())
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), draft.ID, 9)
	require.ErrorIs(t, err, ErrNotPosted)
}

func TestCancelTwiceFails(t *testing.T) {
	repo := newMemoryVoucherRepo()
	svc := NewService(repo, nil)

	draft, err := svc.CreateDraft(context.Background(), draftReceipt())
	require.NoError(t, err)
	posted, err := svc.Post(context.Background(), draft.ID, 9)
	require.NoError(t, err)
	_, err = svc.Cancel(context.Background(), posted.ID, 9)
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), posted.ID, 9)
	require.ErrorIs(t, err, ErrNotPosted)
}

func TestFormatNumber(t *testing.T) {
	require.Equal(t, "RV-000042", FormatNumber(VoucherTypeReceipt, 42))
	require.Equal(t, "PV-001000", FormatNumber(VoucherTypePayment, 1000))
}
