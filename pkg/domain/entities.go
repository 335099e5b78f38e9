// Package domain defines the persistent entities, value types, and rule
// evaluation primitives of the herdcore reproductive lifecycle engine.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityAnimal identifies a livestock record owned by the registry collaborator.
	EntityAnimal EntityType = "animal"
	// EntitySemenStraw identifies a semen straw held in inventory.
	EntitySemenStraw EntityType = "semen_straw"
	// EntityHeatCycle identifies an observed or scheduled heat cycle.
	EntityHeatCycle EntityType = "heat_cycle"
	// EntityInsemination identifies an insemination record.
	EntityInsemination EntityType = "insemination"
	// EntityPregnancyCheck identifies a pregnancy check journal entry.
	EntityPregnancyCheck EntityType = "pregnancy_check"
	// EntityDelivery identifies a delivery (birth) event.
	EntityDelivery EntityType = "delivery"
	// EntityOffspring identifies a single offspring born in a delivery.
	EntityOffspring EntityType = "offspring"
	// EntityLactation identifies a lactation period.
	EntityLactation EntityType = "lactation"
)

// Sex of an animal.
type Sex string

// Supported animal sexes.
const (
	SexFemale Sex = "Female"
	SexMale   Sex = "Male"
)

// HeatIntensity grades an observed heat.
type HeatIntensity string

// Heat intensities, weakest first.
const (
	IntensityWeak         HeatIntensity = "Weak"
	IntensityModerate     HeatIntensity = "Moderate"
	IntensityStrong       HeatIntensity = "Strong"
	IntensityStandingHeat HeatIntensity = "StandingHeat"
)

// HeatSource records how a heat cycle entered the system.
type HeatSource string

// Heat cycle sources.
const (
	HeatSourceObserved  HeatSource = "Observed"
	HeatSourceScheduled HeatSource = "Scheduled"
)

// BreedingMethod distinguishes natural service from artificial insemination.
type BreedingMethod string

// Breeding methods.
const (
	MethodNatural BreedingMethod = "Natural"
	MethodAI      BreedingMethod = "AI"
)

// InseminationStatus is the pregnancy state owned by an insemination.
type InseminationStatus string

// Insemination statuses (see the lifecycle_transition rule for legal moves).
const (
	StatusPending           InseminationStatus = "Pending"
	StatusConfirmedPregnant InseminationStatus = "ConfirmedPregnant"
	StatusNotPregnant       InseminationStatus = "NotPregnant"
	StatusDelivered         InseminationStatus = "Delivered"
	StatusFailed            InseminationStatus = "Failed"
)

// CheckMethod names the technique used for a pregnancy check.
type CheckMethod string

// Pregnancy check methods.
const (
	CheckUltrasound  CheckMethod = "Ultrasound"
	CheckPalpation   CheckMethod = "Palpation"
	CheckBloodTest   CheckMethod = "BloodTest"
	CheckObservation CheckMethod = "Observation"
)

// CheckResult is the outcome of a pregnancy check.
type CheckResult string

// Pregnancy check results.
const (
	ResultPregnant    CheckResult = "Pregnant"
	ResultNotPregnant CheckResult = "NotPregnant"
	ResultReabsorbed  CheckResult = "Reabsorbed"
)

// DeliveryType classifies a birth event.
type DeliveryType string

// Delivery types.
const (
	DeliveryNormal    DeliveryType = "Normal"
	DeliveryAssisted  DeliveryType = "Assisted"
	DeliveryCaesarean DeliveryType = "Caesarean"
	DeliveryAbortion  DeliveryType = "Abortion"
)

// BirthCondition describes an offspring at birth.
type BirthCondition string

// Birth conditions. Only Stillborn counts against live_born.
const (
	ConditionVigorous  BirthCondition = "Vigorous"
	ConditionWeak      BirthCondition = "Weak"
	ConditionStillborn BirthCondition = "Stillborn"
)

// ColostrumIntake grades first-milk intake.
type ColostrumIntake string

// Colostrum intake grades.
const (
	ColostrumAdequate ColostrumIntake = "Adequate"
	ColostrumPartial  ColostrumIntake = "Partial"
	ColostrumNone     ColostrumIntake = "None"
)

// LactationStatus tracks whether a lactation is still producing.
type LactationStatus string

// Lactation statuses. Completed is terminal.
const (
	LactationOngoing   LactationStatus = "Ongoing"
	LactationCompleted LactationStatus = "Completed"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Animal is the registry's view of a dam or sire. The engine only reads it,
// apart from registering seed records.
type Animal struct {
	Base
	FarmerID string `json:"farmer_id"`
	Tag      string `json:"tag"`
	Name     string `json:"name"`
	Species  string `json:"species"`
	Sex      Sex    `json:"sex"`
}

// SemenStraw is one unit of AI inventory. It is consumed exactly once.
type SemenStraw struct {
	Base
	FarmerID  string     `json:"farmer_id"`
	Code      string     `json:"code"`
	SireBreed string     `json:"sire_breed"`
	Used      bool       `json:"used"`
	UsedAt    *time.Time `json:"used_at"`
}

// HeatCycle is an observed or predicted fertility window for a dam.
type HeatCycle struct {
	Base
	DamID            string        `json:"dam_id"`
	ObservedDate     *time.Time    `json:"observed_date"`
	Intensity        HeatIntensity `json:"intensity,omitempty"`
	Inseminated      bool          `json:"inseminated"`
	NextExpectedDate time.Time     `json:"next_expected_date"`
	Notes            string        `json:"notes,omitempty"`
	Source           HeatSource    `json:"source"`
	SourceDeliveryID *string       `json:"source_delivery_id"`
}

// Observed reports whether the cycle has been seen rather than only predicted.
func (h HeatCycle) Observed() bool {
	return h.ObservedDate != nil
}

// Insemination links a consumed heat cycle to a sire or straw and owns the
// pregnancy status of that breeding attempt.
type Insemination struct {
	Base
	DamID                string             `json:"dam_id"`
	SireID               *string            `json:"sire_id"`
	SemenID              *string            `json:"semen_id"`
	HeatCycleID          string             `json:"heat_cycle_id"`
	Method               BreedingMethod     `json:"breeding_method"`
	InseminationDate     time.Time          `json:"insemination_date"`
	ExpectedDeliveryDate *time.Time         `json:"expected_delivery_date"`
	Status               InseminationStatus `json:"status"`
	ClosedManually       bool               `json:"closed_manually"`
	Notes                string             `json:"notes,omitempty"`
}

// HoldsHeatCycle reports whether the insemination still claims its heat cycle.
func (i Insemination) HoldsHeatCycle() bool {
	switch i.Status {
	case StatusPending, StatusConfirmedPregnant, StatusDelivered:
		return true
	default:
		return false
	}
}

// PregnancyCheck is one entry in an insemination's confirmation journal.
type PregnancyCheck struct {
	Base
	InseminationID       string      `json:"insemination_id"`
	CheckDate            time.Time   `json:"check_date"`
	Method               CheckMethod `json:"method"`
	Result               CheckResult `json:"result"`
	FetusCount           *int        `json:"fetus_count"`
	ExpectedDeliveryDate *time.Time  `json:"expected_delivery_date"`
	Notes                string      `json:"notes,omitempty"`
}

// Delivery is the birth event closing a successful pregnancy.
type Delivery struct {
	Base
	InseminationID     string       `json:"insemination_id"`
	DamID              string       `json:"dam_id"`
	ActualDeliveryDate time.Time    `json:"actual_delivery_date"`
	Type               DeliveryType `json:"delivery_type"`
	CalvingEaseScore   int          `json:"calving_ease_score"`
	TotalBorn          int          `json:"total_born"`
	LiveBorn           int          `json:"live_born"`
	Stillborn          int          `json:"stillborn"`
	DamConditionAfter  string       `json:"dam_condition_after"`
	Notes              string       `json:"notes,omitempty"`
}

// Offspring is a single animal born in a delivery.
type Offspring struct {
	Base
	DeliveryID      string          `json:"delivery_id"`
	Tag             string          `json:"tag,omitempty"`
	Gender          Sex             `json:"gender"`
	BirthWeightKg   decimal.Decimal `json:"birth_weight_kg"`
	BirthCondition  BirthCondition  `json:"birth_condition"`
	ColostrumIntake ColostrumIntake `json:"colostrum_intake,omitempty"`
}

// Stillborn reports whether the offspring counts against live births.
func (o Offspring) Stillborn() bool {
	return o.BirthCondition == ConditionStillborn
}

// Lactation is a milk-production period opened at delivery and closed at dry-off.
type Lactation struct {
	Base
	DamID            string          `json:"dam_id"`
	LactationNumber  int             `json:"lactation_number"`
	StartDate        time.Time       `json:"start_date"`
	Status           LactationStatus `json:"status"`
	PeakDate         *time.Time      `json:"peak_date"`
	DryOffDate       *time.Time      `json:"dry_off_date"`
	TotalMilkKg      decimal.Decimal `json:"total_milk_kg"`
	SourceDeliveryID *string         `json:"source_delivery_id"`
}

// Change describes a mutation applied within a transaction. Before and After
// hold JSON snapshots of the record; either may be undefined.
type Change struct {
	Entity   EntityType    `json:"entity"`
	Action   Action        `json:"action"`
	EntityID string        `json:"entity_id"`
	Before   ChangePayload `json:"before"`
	After    ChangePayload `json:"after"`
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string     `json:"rule"`
	Severity Severity   `json:"severity"`
	Message  string     `json:"message"`
	Entity   EntityType `json:"entity"`
	EntityID string     `json:"entity_id"`
}

// Result describes the outcome of a committed transaction: the full set of
// records touched and any non-blocking rule output.
type Result struct {
	Changes    []Change    `json:"changes"`
	Violations []Violation `json:"violations,omitempty"`
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Touched returns the changes applied to the given entity type, in order.
func (r Result) Touched(entity EntityType) []Change {
	var out []Change
	for _, c := range r.Changes {
		if c.Entity == entity {
			out = append(out, c)
		}
	}
	return out
}
