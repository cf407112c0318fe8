package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"liaison/internal/models"
	"liaison/internal/ports"
)

// Store is an in-process implementation of ports.Store with the same
// constraints as the Postgres schema. Transactions are serialized and
// applied to a copy that replaces the live state on success.
type Store struct {
	mu    sync.Mutex
	state *state
}

func New() *Store {
	return &Store{state: newState()}
}

var _ ports.Store = (*Store)(nil)

type state struct {
	relationships map[string]models.Relationship
	plans         map[string]models.PaymentPlan
	obligations   map[string]models.Obligation
	notices       map[string]models.Notice
	noticeSeq     map[string]int64
	contacts      map[string]contact
}

type contact struct {
	name  string
	email string
}

func newState() *state {
	return &state{
		relationships: map[string]models.Relationship{},
		plans:         map[string]models.PaymentPlan{},
		obligations:   map[string]models.Obligation{},
		notices:       map[string]models.Notice{},
		noticeSeq:     map[string]int64{},
		contacts:      map[string]contact{},
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.relationships {
		c.relationships[k] = v
	}
	for k, v := range st.plans {
		c.plans[k] = v
	}
	for k, v := range st.obligations {
		c.obligations[k] = v
	}
	for k, v := range st.notices {
		c.notices[k] = v
	}
	for k, v := range st.noticeSeq {
		c.noticeSeq[k] = v
	}
	for k, v := range st.contacts {
		c.contacts[k] = v
	}
	return c
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, repo ports.Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.state.clone()
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.state = tx
	return nil
}

func (s *Store) with(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

// SetContact registers the display name and email of a party.
func (s *Store) SetContact(partyID, name, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.contacts[partyID] = contact{name: name, email: email}
}

func (s *Store) Contact(_ context.Context, partyID string) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.state.contacts[partyID]
	if !ok {
		return "", "", ports.ErrNotFound
	}
	return c.name, c.email, nil
}

// ---------- relationships ----------

func (st *state) InsertRelationship(_ context.Context, r models.Relationship) error {
	if _, ok := st.relationships[r.ID]; ok {
		return ports.ErrConflict
	}
	for _, existing := range st.relationships {
		if existing.FirmPartyID == r.FirmPartyID && existing.ClientPartyID == r.ClientPartyID {
			return ports.ErrConflict
		}
	}
	st.relationships[r.ID] = r
	return nil
}

func (st *state) GetRelationship(_ context.Context, id string) (models.Relationship, error) {
	r, ok := st.relationships[id]
	if !ok {
		return models.Relationship{}, ports.ErrNotFound
	}
	return r, nil
}

func (st *state) UpdateRelationshipStatus(_ context.Context, id string, from, to models.RelationshipStatus) error {
	r, ok := st.relationships[id]
	if !ok {
		return ports.ErrNotFound
	}
	if r.Status != from {
		return ports.ErrConflict
	}
	r.Status = to
	r.UpdatedAt = time.Now().UTC()
	st.relationships[id] = r
	return nil
}

func (st *state) SaveReputation(_ context.Context, r models.Relationship) error {
	cur, ok := st.relationships[r.ID]
	if !ok {
		return ports.ErrNotFound
	}
	cur.Score = r.Score
	cur.ConsecutiveMisses = r.ConsecutiveMisses
	cur.OnTimeStreak = r.OnTimeStreak
	cur.LastMissAt = r.LastMissAt
	cur.OnTimeCount = r.OnTimeCount
	cur.ResolvedCount = r.ResolvedCount
	cur.UpdatedAt = r.UpdatedAt
	st.relationships[r.ID] = cur
	return nil
}

// ---------- plans ----------

func (st *state) InsertPlan(_ context.Context, p models.PaymentPlan) error {
	if _, ok := st.relationships[p.RelationshipID]; !ok {
		return fmt.Errorf("plan %s: relationship %s: %w", p.ID, p.RelationshipID, ports.ErrNotFound)
	}
	if _, ok := st.plans[p.ID]; ok {
		return ports.ErrConflict
	}
	if p.Status == models.PlanActive && st.hasActive(p.RelationshipID, p.ID) {
		return ports.ErrConflict
	}
	st.plans[p.ID] = p
	return nil
}

func (st *state) GetPlan(_ context.Context, id string) (models.PaymentPlan, error) {
	p, ok := st.plans[id]
	if !ok {
		return models.PaymentPlan{}, ports.ErrNotFound
	}
	return p, nil
}

func (st *state) ActivePlan(_ context.Context, relationshipID string) (*models.PaymentPlan, error) {
	for _, p := range st.plans {
		if p.RelationshipID == relationshipID && p.Status == models.PlanActive {
			out := p
			return &out, nil
		}
	}
	return nil, nil
}

func (st *state) hasActive(relationshipID, exceptID string) bool {
	for _, p := range st.plans {
		if p.ID != exceptID && p.RelationshipID == relationshipID && p.Status == models.PlanActive {
			return true
		}
	}
	return false
}

func (st *state) TransitionPlan(_ context.Context, id string, from, to models.PlanStatus, modifiedBy string, at time.Time) error {
	p, ok := st.plans[id]
	if !ok {
		return ports.ErrNotFound
	}
	if p.Status != from {
		return ports.ErrConflict
	}
	if to == models.PlanActive {
		if st.hasActive(p.RelationshipID, p.ID) {
			return ports.ErrConflict
		}
		activated := at
		p.ActivatedAt = &activated
	}
	p.Status = to
	p.ModifiedBy = modifiedBy
	p.UpdatedAt = at
	st.plans[id] = p
	return nil
}

// ---------- obligations ----------

func (st *state) InsertObligation(_ context.Context, o models.Obligation) error {
	if _, ok := st.plans[o.PlanID]; !ok {
		return fmt.Errorf("obligation %s: plan %s: %w", o.ID, o.PlanID, ports.ErrNotFound)
	}
	if _, ok := st.obligations[o.ID]; ok {
		return ports.ErrConflict
	}
	for _, existing := range st.obligations {
		if existing.PlanID == o.PlanID && existing.Sequence == o.Sequence {
			return ports.ErrConflict
		}
	}
	st.obligations[o.ID] = o
	return nil
}

func (st *state) GetObligation(_ context.Context, id string) (models.Obligation, error) {
	o, ok := st.obligations[id]
	if !ok {
		return models.Obligation{}, ports.ErrNotFound
	}
	return o, nil
}

func (st *state) GetObligationBySequence(_ context.Context, planID string, seq int) (models.Obligation, error) {
	for _, o := range st.obligations {
		if o.PlanID == planID && o.Sequence == seq {
			return o, nil
		}
	}
	return models.Obligation{}, ports.ErrNotFound
}

func (st *state) ListObligations(_ context.Context, planID string) ([]models.Obligation, error) {
	out := make([]models.Obligation, 0)
	for _, o := range st.obligations {
		if o.PlanID == planID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (st *state) UpdateObligation(_ context.Context, o models.Obligation, from models.ObligationStatus) error {
	cur, ok := st.obligations[o.ID]
	if !ok {
		return ports.ErrNotFound
	}
	if cur.Status != from {
		return ports.ErrConflict
	}
	o.PlanID = cur.PlanID
	o.Sequence = cur.Sequence
	o.CreatedAt = cur.CreatedAt
	st.obligations[o.ID] = o
	return nil
}

func (st *state) ListDueBefore(_ context.Context, cutoff time.Time, statuses []models.ObligationStatus, limit int) ([]models.Obligation, error) {
	out := make([]models.Obligation, 0)
	for _, o := range st.obligations {
		if !slices.Contains(statuses, o.Status) || !o.DueDate.Before(cutoff) {
			continue
		}
		if p, ok := st.plans[o.PlanID]; !ok || p.Status != models.PlanActive {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---------- notices ----------

func (st *state) InsertNotice(_ context.Context, n *models.Notice) error {
	if _, ok := st.relationships[n.RelationshipID]; !ok {
		return fmt.Errorf("notice %s: relationship %s: %w", n.ID, n.RelationshipID, ports.ErrNotFound)
	}
	if _, ok := st.notices[n.ID]; ok {
		return ports.ErrConflict
	}
	st.noticeSeq[n.RelationshipID]++
	n.Seq = st.noticeSeq[n.RelationshipID]
	st.notices[n.ID] = *n
	return nil
}

func (st *state) GetNotice(_ context.Context, id string) (models.Notice, error) {
	n, ok := st.notices[id]
	if !ok {
		return models.Notice{}, ports.ErrNotFound
	}
	return n, nil
}

func (st *state) ListNotices(_ context.Context, relationshipID string, afterSeq int64, limit int) ([]models.Notice, error) {
	out := make([]models.Notice, 0)
	for _, n := range st.notices {
		if n.RelationshipID == relationshipID && n.Seq > afterSeq {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (st *state) TransitionProposal(_ context.Context, id string, version int, from, to models.ProposalState) error {
	n, ok := st.notices[id]
	if !ok {
		return ports.ErrNotFound
	}
	if n.Version != version || n.ProposalState != from {
		return ports.ErrConflict
	}
	n.ProposalState = to
	n.Version++
	st.notices[id] = n
	return nil
}

func (st *state) MarkNoticeRead(_ context.Context, id, receiverID string) error {
	n, ok := st.notices[id]
	if !ok || n.ReceiverID != receiverID {
		return ports.ErrNotFound
	}
	n.Read = true
	st.notices[id] = n
	return nil
}

// ---------- locked wrappers ----------

func (s *Store) InsertRelationship(ctx context.Context, r models.Relationship) error {
	return s.with(func(st *state) error { return st.InsertRelationship(ctx, r) })
}

func (s *Store) GetRelationship(ctx context.Context, id string) (out models.Relationship, err error) {
	err = s.with(func(st *state) error { out, err = st.GetRelationship(ctx, id); return err })
	return out, err
}

func (s *Store) UpdateRelationshipStatus(ctx context.Context, id string, from, to models.RelationshipStatus) error {
	return s.with(func(st *state) error { return st.UpdateRelationshipStatus(ctx, id, from, to) })
}

func (s *Store) SaveReputation(ctx context.Context, r models.Relationship) error {
	return s.with(func(st *state) error { return st.SaveReputation(ctx, r) })
}

func (s *Store) InsertPlan(ctx context.Context, p models.PaymentPlan) error {
	return s.with(func(st *state) error { return st.InsertPlan(ctx, p) })
}

func (s *Store) GetPlan(ctx context.Context, id string) (out models.PaymentPlan, err error) {
	err = s.with(func(st *state) error { out, err = st.GetPlan(ctx, id); return err })
	return out, err
}

func (s *Store) ActivePlan(ctx context.Context, relationshipID string) (out *models.PaymentPlan, err error) {
	err = s.with(func(st *state) error { out, err = st.ActivePlan(ctx, relationshipID); return err })
	return out, err
}

func (s *Store) TransitionPlan(ctx context.Context, id string, from, to models.PlanStatus, modifiedBy string, at time.Time) error {
	return s.with(func(st *state) error { return st.TransitionPlan(ctx, id, from, to, modifiedBy, at) })
}

func (s *Store) InsertObligation(ctx context.Context, o models.Obligation) error {
	return s.with(func(st *state) error { return st.InsertObligation(ctx, o) })
}

func (s *Store) GetObligation(ctx context.Context, id string) (out models.Obligation, err error) {
	err = s.with(func(st *state) error { out, err = st.GetObligation(ctx, id); return err })
	return out, err
}

func (s *Store) GetObligationBySequence(ctx context.Context, planID string, seq int) (out models.Obligation, err error) {
	err = s.with(func(st *state) error { out, err = st.GetObligationBySequence(ctx, planID, seq); return err })
	return out, err
}

func (s *Store) ListObligations(ctx context.Context, planID string) (out []models.Obligation, err error) {
	err = s.with(func(st *state) error { out, err = st.ListObligations(ctx, planID); return err })
	return out, err
}

func (s *Store) UpdateObligation(ctx context.Context, o models.Obligation, from models.ObligationStatus) error {
	return s.with(func(st *state) error { return st.UpdateObligation(ctx, o, from) })
}

func (s *Store) ListDueBefore(ctx context.Context, cutoff time.Time, statuses []models.ObligationStatus, limit int) (out []models.Obligation, err error) {
	err = s.with(func(st *state) error { out, err = st.ListDueBefore(ctx, cutoff, statuses, limit); return err })
	return out, err
}

func (s *Store) InsertNotice(ctx context.Context, n *models.Notice) error {
	return s.with(func(st *state) error { return st.InsertNotice(ctx, n) })
}

func (s *Store) GetNotice(ctx context.Context, id string) (out models.Notice, err error) {
	err = s.with(func(st *state) error { out, err = st.GetNotice(ctx, id); return err })
	return out, err
}

func (s *Store) ListNotices(ctx context.Context, relationshipID string, afterSeq int64, limit int) (out []models.Notice, err error) {
	err = s.with(func(st *state) error { out, err = st.ListNotices(ctx, relationshipID, afterSeq, limit); return err })
	return out, err
}

func (s *Store) TransitionProposal(ctx context.Context, id string, version int, from, to models.ProposalState) error {
	return s.with(func(st *state) error { return st.TransitionProposal(ctx, id, version, from, to) })
}

func (s *Store) MarkNoticeRead(ctx context.Context, id, receiverID string) error {
	return s.with(func(st *state) error { return st.MarkNoticeRead(ctx, id, receiverID) })
}
