// Package memory provides an in-memory implementation of the core persistence
// store used for tests, ephemeral environments, and as the transactional
// engine underneath the snapshotting SQL stores.
package memory

import (
	"context"
	"fmt"
	"herdcore/pkg/domain"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Animal aliases domain.Animal for in-memory persistence operations.
	Animal = domain.Animal
	// SemenStraw aliases domain.SemenStraw.
	SemenStraw = domain.SemenStraw
	// HeatCycle aliases domain.HeatCycle.
	HeatCycle = domain.HeatCycle
	// Insemination aliases domain.Insemination.
	Insemination = domain.Insemination
	// PregnancyCheck aliases domain.PregnancyCheck.
	PregnancyCheck = domain.PregnancyCheck
	// Delivery aliases domain.Delivery.
	Delivery = domain.Delivery
	// Offspring aliases domain.Offspring.
	Offspring = domain.Offspring
	// Lactation aliases domain.Lactation.
	Lactation = domain.Lactation
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	animals       map[string]Animal
	straws        map[string]SemenStraw
	heatCycles    map[string]HeatCycle
	inseminations map[string]Insemination
	checks        map[string]PregnancyCheck
	deliveries    map[string]Delivery
	offspring     map[string]Offspring
	lactations    map[string]Lactation
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Animals        map[string]Animal         `json:"animals"`
	SemenStraws    map[string]SemenStraw     `json:"semen_straws"`
	HeatCycles     map[string]HeatCycle      `json:"heat_cycles"`
	Inseminations  map[string]Insemination   `json:"inseminations"`
	PregnancyCheck map[string]PregnancyCheck `json:"pregnancy_checks"`
	Deliveries     map[string]Delivery       `json:"deliveries"`
	Offspring      map[string]Offspring      `json:"offspring"`
	Lactations     map[string]Lactation      `json:"lactations"`
}

func newMemoryState() memoryState {
	return memoryState{
		animals:       make(map[string]Animal),
		straws:        make(map[string]SemenStraw),
		heatCycles:    make(map[string]HeatCycle),
		inseminations: make(map[string]Insemination),
		checks:        make(map[string]PregnancyCheck),
		deliveries:    make(map[string]Delivery),
		offspring:     make(map[string]Offspring),
		lactations:    make(map[string]Lactation),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	return Snapshot{
		Animals:        cloneMap(state.animals, cloneAnimal),
		SemenStraws:    cloneMap(state.straws, cloneStraw),
		HeatCycles:     cloneMap(state.heatCycles, cloneHeatCycle),
		Inseminations:  cloneMap(state.inseminations, cloneInsemination),
		PregnancyCheck: cloneMap(state.checks, cloneCheck),
		Deliveries:     cloneMap(state.deliveries, cloneDelivery),
		Offspring:      cloneMap(state.offspring, cloneOffspring),
		Lactations:     cloneMap(state.lactations, cloneLactation),
	}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	copyInto(state.animals, s.Animals, cloneAnimal)
	copyInto(state.straws, s.SemenStraws, cloneStraw)
	copyInto(state.heatCycles, s.HeatCycles, cloneHeatCycle)
	copyInto(state.inseminations, s.Inseminations, cloneInsemination)
	copyInto(state.checks, s.PregnancyCheck, cloneCheck)
	copyInto(state.deliveries, s.Deliveries, cloneDelivery)
	copyInto(state.offspring, s.Offspring, cloneOffspring)
	copyInto(state.lactations, s.Lactations, cloneLactation)
	return state
}

func (s memoryState) clone() memoryState {
	return memoryStateFromSnapshot(snapshotFromMemoryState(s))
}

func cloneMap[T any](in map[string]T, cloneFn func(T) T) map[string]T {
	out := make(map[string]T, len(in))
	for k, v := range in {
		out[k] = cloneFn(v)
	}
	return out
}

func copyInto[T any](dst, src map[string]T, cloneFn func(T) T) {
	for k, v := range src {
		dst[k] = cloneFn(v)
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

func cloneAnimal(a Animal) Animal { return a }

func cloneStraw(s SemenStraw) SemenStraw {
	s.UsedAt = cloneTime(s.UsedAt)
	return s
}

func cloneHeatCycle(h HeatCycle) HeatCycle {
	h.ObservedDate = cloneTime(h.ObservedDate)
	h.SourceDeliveryID = cloneString(h.SourceDeliveryID)
	return h
}

func cloneInsemination(i Insemination) Insemination {
	i.SireID = cloneString(i.SireID)
	i.SemenID = cloneString(i.SemenID)
	i.ExpectedDeliveryDate = cloneTime(i.ExpectedDeliveryDate)
	return i
}

func cloneCheck(c PregnancyCheck) PregnancyCheck {
	if c.FetusCount != nil {
		n := *c.FetusCount
		c.FetusCount = &n
	}
	c.ExpectedDeliveryDate = cloneTime(c.ExpectedDeliveryDate)
	return c
}

func cloneDelivery(d Delivery) Delivery     { return d }
func cloneOffspring(o Offspring) Offspring { return o }

func cloneLactation(l Lactation) Lactation {
	l.PeakDate = cloneTime(l.PeakDate)
	l.DryOffDate = cloneTime(l.DryOffDate)
	l.SourceDeliveryID = cloneString(l.SourceDeliveryID)
	return l
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// WithIDGenerator overrides the record identifier generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.idFn = gen
		}
	}
}

// newRecordID returns a time-ordered identifier so that records created within
// the same instant still sort in creation order.
func newRecordID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// WithCommitHook registers fn to run with the post-transaction snapshot before
// it replaces the live state. A hook error rolls the transaction back.
func WithCommitHook(fn func(ctx context.Context, snapshot Snapshot) error) Option {
	return func(s *Store) {
		s.commitHook = fn
	}
}

// WithSyncHook registers fn to run under the store lock before every
// transaction and view. When fn reports stale=true the returned snapshot
// replaces the live state before any read happens.
func WithSyncHook(fn func(ctx context.Context) (snapshot Snapshot, stale bool, err error)) Option {
	return func(s *Store) {
		s.syncHook = fn
	}
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu         sync.RWMutex
	state      memoryState
	engine     *RulesEngine
	nowFn      func() time.Time
	idFn       func() string
	commitHook func(ctx context.Context, snapshot Snapshot) error
	syncHook   func(ctx context.Context) (Snapshot, bool, error)
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
		idFn:   newRecordID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

type transaction struct {
	transactionView
	store   *Store
	changes []Change
	now     time.Time
}

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy replaces the live state only when fn succeeds, the context is still
// live, and no blocking rule fires.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if err := s.syncLocked(ctx); err != nil {
		return Result{}, err
	}
	state := s.state.clone()
	tx := &transaction{
		transactionView: transactionView{state: &state},
		store:           s,
		now:             s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("transaction aborted: %w", err)
	}

	result := Result{Changes: tx.changes}
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, tx.transactionView, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result.Violations = res.Violations
		if res.HasBlocking() {
			return result, domain.RuleViolationError{Result: result}
		}
	}

	if s.commitHook != nil {
		if err := s.commitHook(ctx, snapshotFromMemoryState(state)); err != nil {
			return Result{}, fmt.Errorf("persist snapshot: %w", err)
		}
	}
	s.state = state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(ctx context.Context, fn func(TransactionView) error) error {
	if s.syncHook != nil {
		s.mu.Lock()
		err := s.syncLocked(ctx)
		snapshot := s.state.clone()
		s.mu.Unlock()
		if err != nil {
			return err
		}
		return fn(transactionView{state: &snapshot})
	}
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(transactionView{state: &snapshot})
}

func (s *Store) syncLocked(ctx context.Context) error {
	if s.syncHook == nil {
		return nil
	}
	snapshot, stale, err := s.syncHook(ctx)
	if err != nil {
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if stale {
		s.state = memoryStateFromSnapshot(snapshot)
	}
	return nil
}

func (tx *transaction) recordChange(entity domain.EntityType, action domain.Action, id string, before, after any) error {
	change := Change{Entity: entity, Action: action, EntityID: id}
	if before != nil {
		payload, err := domain.NewChangePayloadFromValue(before)
		if err != nil {
			return fmt.Errorf("encode %s before: %w", entity, err)
		}
		change.Before = payload
	}
	if after != nil {
		payload, err := domain.NewChangePayloadFromValue(after)
		if err != nil {
			return fmt.Errorf("encode %s after: %w", entity, err)
		}
		change.After = payload
	}
	tx.changes = append(tx.changes, change)
	return nil
}

func (tx *transaction) newBase(id string) domain.Base {
	if id == "" {
		id = tx.store.idFn()
	}
	return domain.Base{ID: id, CreatedAt: tx.now, UpdatedAt: tx.now}
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return tx.transactionView
}

// Now returns the timestamp applied to records written by this transaction.
func (tx *transaction) Now() time.Time {
	return tx.now
}

// CreateAnimal stores a new animal.
func (tx *transaction) CreateAnimal(a Animal) (Animal, error) {
	a.Base = tx.newBase(a.ID)
	if _, exists := tx.state.animals[a.ID]; exists {
		return Animal{}, domain.Conflict(domain.EntityAnimal, a.ID, "already exists")
	}
	for _, other := range tx.state.animals {
		if other.FarmerID == a.FarmerID && a.Tag != "" && other.Tag == a.Tag {
			return Animal{}, domain.Conflict(domain.EntityAnimal, a.ID, "tag %q already registered", a.Tag)
		}
	}
	tx.state.animals[a.ID] = cloneAnimal(a)
	return cloneAnimal(a), tx.recordChange(domain.EntityAnimal, domain.ActionCreate, a.ID, nil, a)
}

// UpdateAnimal mutates an animal using the provided mutator function.
func (tx *transaction) UpdateAnimal(id string, mutator func(*Animal) error) (Animal, error) {
	current, ok := tx.state.animals[id]
	if !ok {
		return Animal{}, domain.NotFoundError{Entity: domain.EntityAnimal, ID: id}
	}
	before := cloneAnimal(current)
	if err := mutator(&current); err != nil {
		return Animal{}, err
	}
	current.Base = before.Base
	current.UpdatedAt = tx.now
	tx.state.animals[id] = cloneAnimal(current)
	return cloneAnimal(current), tx.recordChange(domain.EntityAnimal, domain.ActionUpdate, id, before, current)
}

// DeleteAnimal removes an animal that no breeding record references.
func (tx *transaction) DeleteAnimal(id string) error {
	current, ok := tx.state.animals[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityAnimal, ID: id}
	}
	for _, insem := range tx.state.inseminations {
		if insem.DamID == id || (insem.SireID != nil && *insem.SireID == id) {
			return domain.Conflict(domain.EntityAnimal, id, "still referenced by insemination %s", insem.ID)
		}
	}
	delete(tx.state.animals, id)
	return tx.recordChange(domain.EntityAnimal, domain.ActionDelete, id, current, nil)
}

// CreateSemenStraw stores a new straw.
func (tx *transaction) CreateSemenStraw(st SemenStraw) (SemenStraw, error) {
	st.Base = tx.newBase(st.ID)
	if _, exists := tx.state.straws[st.ID]; exists {
		return SemenStraw{}, domain.Conflict(domain.EntitySemenStraw, st.ID, "already exists")
	}
	tx.state.straws[st.ID] = cloneStraw(st)
	return cloneStraw(st), tx.recordChange(domain.EntitySemenStraw, domain.ActionCreate, st.ID, nil, st)
}

// UpdateSemenStraw mutates a straw.
func (tx *transaction) UpdateSemenStraw(id string, mutator func(*SemenStraw) error) (SemenStraw, error) {
	current, ok := tx.state.straws[id]
	if !ok {
		return SemenStraw{}, domain.NotFoundError{Entity: domain.EntitySemenStraw, ID: id}
	}
	before := cloneStraw(current)
	if err := mutator(&current); err != nil {
		return SemenStraw{}, err
	}
	current.Base = before.Base
	current.UpdatedAt = tx.now
	tx.state.straws[id] = cloneStraw(current)
	return cloneStraw(current), tx.recordChange(domain.EntitySemenStraw, domain.ActionUpdate, id, before, current)
}

// DeleteSemenStraw removes an unused straw.
func (tx *transaction) DeleteSemenStraw(id string) error {
	current, ok := tx.state.straws[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntitySemenStraw, ID: id}
	}
	if current.Used {
		return domain.Conflict(domain.EntitySemenStraw, id, "straw already used")
	}
	delete(tx.state.straws, id)
	return tx.recordChange(domain.EntitySemenStraw, domain.ActionDelete, id, current, nil)
}

// CreateHeatCycle stores a new heat cycle.
func (tx *transaction) CreateHeatCycle(h HeatCycle) (HeatCycle, error) {
	h.Base = tx.newBase(h.ID)
	if _, exists := tx.state.heatCycles[h.ID]; exists {
		return HeatCycle{}, domain.Conflict(domain.EntityHeatCycle, h.ID, "already exists")
	}
	if _, ok := tx.state.animals[h.DamID]; !ok {
		return HeatCycle{}, domain.NotFoundError{Entity: domain.EntityAnimal, ID: h.DamID}
	}
	tx.state.heatCycles[h.ID] = cloneHeatCycle(h)
	return cloneHeatCycle(h), tx.recordChange(domain.EntityHeatCycle, domain.ActionCreate, h.ID, nil, h)
}

// UpdateHeatCycle mutates a heat cycle.
func (tx *transaction) UpdateHeatCycle(id string, mutator func(*HeatCycle) error) (HeatCycle, error) {
	current, ok := tx.state.heatCycles[id]
	if !ok {
		return HeatCycle{}, domain.NotFoundError{Entity: domain.EntityHeatCycle, ID: id}
	}
	before := cloneHeatCycle(current)
	if err := mutator(&current); err != nil {
		return HeatCycle{}, err
	}
	current.Base = before.Base
	current.UpdatedAt = tx.now
	tx.state.heatCycles[id] = cloneHeatCycle(current)
	return cloneHeatCycle(current), tx.recordChange(domain.EntityHeatCycle, domain.ActionUpdate, id, before, current)
}

// DeleteHeatCycle removes a heat cycle no insemination references.
func (tx *transaction) DeleteHeatCycle(id string) error {
	current, ok := tx.state.heatCycles[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityHeatCycle, ID: id}
	}
	for _, insem := range tx.state.inseminations {
		if insem.HeatCycleID == id {
			return domain.Conflict(domain.EntityHeatCycle, id, "still referenced by insemination %s", insem.ID)
		}
	}
	delete(tx.state.heatCycles, id)
	return tx.recordChange(domain.EntityHeatCycle, domain.ActionDelete, id, current, nil)
}

// CreateInsemination stores a new insemination.
func (tx *transaction) CreateInsemination(i Insemination) (Insemination, error) {
	i.Base = tx.newBase(i.ID)
	if _, exists := tx.state.inseminations[i.ID]; exists {
		return Insemination{}, domain.Conflict(domain.EntityInsemination, i.ID, "already exists")
	}
	if _, ok := tx.state.heatCycles[i.HeatCycleID]; !ok {
		return Insemination{}, domain.NotFoundError{Entity: domain.EntityHeatCycle, ID: i.HeatCycleID}
	}
	tx.state.inseminations[i.ID] = cloneInsemination(i)
	return cloneInsemination(i), tx.recordChange(domain.EntityInsemination, domain.ActionCreate, i.ID, nil, i)
}

// UpdateInsemination mutates an insemination.
func (tx *transaction) UpdateInsemination(id string, mutator func(*Insemination) error) (Insemination, error) {
	current, ok := tx.state.inseminations[id]
	if !ok {
		return Insemination{}, domain.NotFoundError{Entity: domain.EntityInsemination, ID: id}
	}
	before := cloneInsemination(current)
	if err := mutator(&current); err != nil {
		return Insemination{}, err
	}
	current.Base = before.Base
	current.UpdatedAt = tx.now
	tx.state.inseminations[id] = cloneInsemination(current)
	return cloneInsemination(current), tx.recordChange(domain.EntityInsemination, domain.ActionUpdate, id, before, current)
}

// DeleteInsemination removes an insemination once its checks are gone and no
// delivery references it.
func (tx *transaction) DeleteInsemination(id string) error {
	current, ok := tx.state.inseminations[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityInsemination, ID: id}
	}
	for _, d := range tx.state.deliveries {
		if d.InseminationID == id {
			return domain.Conflict(domain.EntityInsemination, id, "delivery %s exists", d.ID)
		}
	}
	for _, c := range tx.state.checks {
		if c.InseminationID == id {
			return domain.Conflict(domain.EntityInsemination, id, "pregnancy check %s still references it", c.ID)
		}
	}
	delete(tx.state.inseminations, id)
	return tx.recordChange(domain.EntityInsemination, domain.ActionDelete, id, current, nil)
}

// CreatePregnancyCheck stores a new journal entry.
func (tx *transaction) CreatePregnancyCheck(c PregnancyCheck) (PregnancyCheck, error) {
	c.Base = tx.newBase(c.ID)
	if _, exists := tx.state.checks[c.ID]; exists {
		return PregnancyCheck{}, domain.Conflict(domain.EntityPregnancyCheck, c.ID, "already exists")
	}
	if _, ok := tx.state.inseminations[c.InseminationID]; !ok {
		return PregnancyCheck{}, domain.NotFoundError{Entity: domain.EntityInsemination, ID: c.InseminationID}
	}
	tx.state.checks[c.ID] = cloneCheck(c)
	return cloneCheck(c), tx.recordChange(domain.EntityPregnancyCheck, domain.ActionCreate, c.ID, nil, c)
}

// UpdatePregnancyCheck mutates a journal entry.
func (tx *transaction) UpdatePregnancyCheck(id string, mutator func(*PregnancyCheck) error) (PregnancyCheck, error) {
	current, ok := tx.state.checks[id]
	if !ok {
		return PregnancyCheck{}, domain.NotFoundError{Entity: domain.EntityPregnancyCheck, ID: id}
	}
	before := cloneCheck(current)
	if err := mutator(&current); err != nil {
		return PregnancyCheck{}, err
	}
	current.Base = before.Base
	current.InseminationID = before.InseminationID
	current.UpdatedAt = tx.now
	tx.state.checks[id] = cloneCheck(current)
	return cloneCheck(current), tx.recordChange(domain.EntityPregnancyCheck, domain.ActionUpdate, id, before, current)
}

// DeletePregnancyCheck removes a journal entry.
func (tx *transaction) DeletePregnancyCheck(id string) error {
	current, ok := tx.state.checks[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityPregnancyCheck, ID: id}
	}
	delete(tx.state.checks, id)
	return tx.recordChange(domain.EntityPregnancyCheck, domain.ActionDelete, id, current, nil)
}

// CreateDelivery stores a new delivery. At most one delivery may exist per insemination.
func (tx *transaction) CreateDelivery(d Delivery) (Delivery, error) {
	d.Base = tx.newBase(d.ID)
	if _, exists := tx.state.deliveries[d.ID]; exists {
		return Delivery{}, domain.Conflict(domain.EntityDelivery, d.ID, "already exists")
	}
	if _, ok := tx.state.inseminations[d.InseminationID]; !ok {
		return Delivery{}, domain.NotFoundError{Entity: domain.EntityInsemination, ID: d.InseminationID}
	}
	for _, other := range tx.state.deliveries {
		if other.InseminationID == d.InseminationID {
			return Delivery{}, domain.Conflict(domain.EntityDelivery, other.ID, "insemination %s already has a delivery", d.InseminationID)
		}
	}
	tx.state.deliveries[d.ID] = cloneDelivery(d)
	return cloneDelivery(d), tx.recordChange(domain.EntityDelivery, domain.ActionCreate, d.ID, nil, d)
}

// UpdateDelivery mutates a delivery.
func (tx *transaction) UpdateDelivery(id string, mutator func(*Delivery) error) (Delivery, error) {
	current, ok := tx.state.deliveries[id]
	if !ok {
		return Delivery{}, domain.NotFoundError{Entity: domain.EntityDelivery, ID: id}
	}
	before := cloneDelivery(current)
	if err := mutator(&current); err != nil {
		return Delivery{}, err
	}
	current.Base = before.Base
	current.InseminationID = before.InseminationID
	current.UpdatedAt = tx.now
	tx.state.deliveries[id] = cloneDelivery(current)
	return cloneDelivery(current), tx.recordChange(domain.EntityDelivery, domain.ActionUpdate, id, before, current)
}

// DeleteDelivery removes a delivery whose offspring have already been removed.
func (tx *transaction) DeleteDelivery(id string) error {
	current, ok := tx.state.deliveries[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityDelivery, ID: id}
	}
	for _, o := range tx.state.offspring {
		if o.DeliveryID == id {
			return domain.Conflict(domain.EntityDelivery, id, "offspring %s still references it", o.ID)
		}
	}
	delete(tx.state.deliveries, id)
	return tx.recordChange(domain.EntityDelivery, domain.ActionDelete, id, current, nil)
}

// deliveryFarmer resolves the farmer owning a delivery through its dam.
func (s *memoryState) deliveryFarmer(deliveryID string) string {
	d, ok := s.deliveries[deliveryID]
	if !ok {
		return ""
	}
	return s.animals[d.DamID].FarmerID
}

// offspringTagTaken reports whether another offspring of the same farmer
// already carries o's tag.
func (s *memoryState) offspringTagTaken(o Offspring) bool {
	if o.Tag == "" {
		return false
	}
	farmer := s.deliveryFarmer(o.DeliveryID)
	for _, other := range s.offspring {
		if other.ID != o.ID && other.Tag == o.Tag && s.deliveryFarmer(other.DeliveryID) == farmer {
			return true
		}
	}
	return false
}

// CreateOffspring stores a new offspring. Non-empty tags are unique among the
// offspring of one farmer.
func (tx *transaction) CreateOffspring(o Offspring) (Offspring, error) {
	o.Base = tx.newBase(o.ID)
	if _, exists := tx.state.offspring[o.ID]; exists {
		return Offspring{}, domain.Conflict(domain.EntityOffspring, o.ID, "already exists")
	}
	if _, ok := tx.state.deliveries[o.DeliveryID]; !ok {
		return Offspring{}, domain.NotFoundError{Entity: domain.EntityDelivery, ID: o.DeliveryID}
	}
	if tx.state.offspringTagTaken(o) {
		return Offspring{}, domain.Conflict(domain.EntityOffspring, o.ID, "tag %q already used by another offspring", o.Tag)
	}
	tx.state.offspring[o.ID] = cloneOffspring(o)
	return cloneOffspring(o), tx.recordChange(domain.EntityOffspring, domain.ActionCreate, o.ID, nil, o)
}

// UpdateOffspring mutates an offspring.
func (tx *transaction) UpdateOffspring(id string, mutator func(*Offspring) error) (Offspring, error) {
	current, ok := tx.state.offspring[id]
	if !ok {
		return Offspring{}, domain.NotFoundError{Entity: domain.EntityOffspring, ID: id}
	}
	before := cloneOffspring(current)
	if err := mutator(&current); err != nil {
		return Offspring{}, err
	}
	current.Base = before.Base
	current.DeliveryID = before.DeliveryID
	current.UpdatedAt = tx.now
	if tx.state.offspringTagTaken(current) {
		return Offspring{}, domain.Conflict(domain.EntityOffspring, id, "tag %q already used by another offspring", current.Tag)
	}
	tx.state.offspring[id] = cloneOffspring(current)
	return cloneOffspring(current), tx.recordChange(domain.EntityOffspring, domain.ActionUpdate, id, before, current)
}

// DeleteOffspring removes an offspring.
func (tx *transaction) DeleteOffspring(id string) error {
	current, ok := tx.state.offspring[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityOffspring, ID: id}
	}
	delete(tx.state.offspring, id)
	return tx.recordChange(domain.EntityOffspring, domain.ActionDelete, id, current, nil)
}

// CreateLactation stores a new lactation.
func (tx *transaction) CreateLactation(l Lactation) (Lactation, error) {
	l.Base = tx.newBase(l.ID)
	if _, exists := tx.state.lactations[l.ID]; exists {
		return Lactation{}, domain.Conflict(domain.EntityLactation, l.ID, "already exists")
	}
	if _, ok := tx.state.animals[l.DamID]; !ok {
		return Lactation{}, domain.NotFoundError{Entity: domain.EntityAnimal, ID: l.DamID}
	}
	tx.state.lactations[l.ID] = cloneLactation(l)
	return cloneLactation(l), tx.recordChange(domain.EntityLactation, domain.ActionCreate, l.ID, nil, l)
}

// UpdateLactation mutates a lactation.
func (tx *transaction) UpdateLactation(id string, mutator func(*Lactation) error) (Lactation, error) {
	current, ok := tx.state.lactations[id]
	if !ok {
		return Lactation{}, domain.NotFoundError{Entity: domain.EntityLactation, ID: id}
	}
	before := cloneLactation(current)
	if err := mutator(&current); err != nil {
		return Lactation{}, err
	}
	current.Base = before.Base
	current.DamID = before.DamID
	current.UpdatedAt = tx.now
	tx.state.lactations[id] = cloneLactation(current)
	return cloneLactation(current), tx.recordChange(domain.EntityLactation, domain.ActionUpdate, id, before, current)
}

// DeleteLactation removes a lactation.
func (tx *transaction) DeleteLactation(id string) error {
	current, ok := tx.state.lactations[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityLactation, ID: id}
	}
	delete(tx.state.lactations, id)
	return tx.recordChange(domain.EntityLactation, domain.ActionDelete, id, current, nil)
}

func sortByCreated[T any](items []T, base func(T) domain.Base, less func(a, b T) int) {
	sort.SliceStable(items, func(i, j int) bool {
		if less != nil {
			if c := less(items[i], items[j]); c != 0 {
				return c < 0
			}
		}
		bi, bj := base(items[i]), base(items[j])
		if !bi.CreatedAt.Equal(bj.CreatedAt) {
			return bi.CreatedAt.Before(bj.CreatedAt)
		}
		return bi.ID < bj.ID
	})
}
