package events

import (
	"errors"
	"fmt"

	"github.com/gyeh/clincost/internal/model"
)

// ErrUnknownSubroutine is returned for an event_subroutine_name with no
// handler.
var ErrUnknownSubroutine = errors.New("unknown event subroutine")

// Subroutine is the closed set of activity types events can be built from.
type Subroutine int

const (
	EDAdmissions Subroutine = iota + 1
	EDDischarges
	EDAttendMin
	EDSeenMin
	EDTreatMin
	OPClinicMin
	IPAdmissions
	IPDischarges
	IPWardBedDays
	IPWardSameDay
	IPWardBedHours
	AnaesthMin
	TheatreMin
)

// UnitKind says whether events get a per-ward or per-clinic distribution code.
type UnitKind int

const (
	NoUnit UnitKind = iota
	WardUnit
	ClinicUnit
)

type handler struct {
	name    string
	service string
	unit    UnitKind
	query   model.ActivityQuery
}

const (
	runFilter    = "hospital_code = $1 AND run_code = $2"
	wardLocation = "inpat_episode_details JOIN inpat_patient_location" +
		" ON inpat_patient_location.hospital_code = inpat_episode_details.hospital_code" +
		" AND inpat_patient_location.run_code = inpat_episode_details.run_code" +
		" AND inpat_patient_location.episode_no = inpat_episode_details.episode_no" +
		" WHERE inpat_episode_details.hospital_code = $1 AND inpat_episode_details.run_code = $2"
)

func table(name string) string { return name + " WHERE " + runFilter }

var handlers = map[Subroutine]handler{
	EDAdmissions: {name: "EDadmissions", service: model.ServiceED,
		query: model.ActivityQuery{From: table("ed_admissions"), Episode: "episode_no"}},
	EDDischarges: {name: "EDdischarges", service: model.ServiceED,
		query: model.ActivityQuery{From: table("ed_discharges"), Episode: "episode_no"}},
	EDAttendMin: {name: "EDattendmin", service: model.ServiceED,
		query: model.ActivityQuery{From: table("ed_episode_details"), Episode: "episode_no", Measure: "attend_min", Acuity: "acuity"}},
	EDSeenMin: {name: "EDseenmin", service: model.ServiceED,
		query: model.ActivityQuery{From: table("ed_episode_details"), Episode: "episode_no", Measure: "seen_min", Acuity: "acuity"}},
	EDTreatMin: {name: "EDtreatmin", service: model.ServiceED,
		query: model.ActivityQuery{From: table("ed_episode_details"), Episode: "episode_no", Measure: "treat_min", Acuity: "acuity"}},
	OPClinicMin: {name: "opclinicmin", service: model.ServiceClinic, unit: ClinicUnit,
		query: model.ActivityQuery{From: table("clinic_activity_details"), Episode: "episode_no", Unit: "clinic_code", Measure: "attend_min", Acuity: "acuity"}},
	IPAdmissions: {name: "ipadmissions", service: model.ServiceInpatient,
		query: model.ActivityQuery{From: table("inpat_admissions"), Episode: "episode_no"}},
	IPDischarges: {name: "ipdischarges", service: model.ServiceInpatient,
		query: model.ActivityQuery{From: table("inpat_discharges"), Episode: "episode_no"}},
	IPWardBedDays: {name: "ipwardbdays", service: model.ServiceInpatient, unit: WardUnit,
		query: model.ActivityQuery{From: wardLocation,
			Episode: "inpat_episode_details.episode_no", Seq: "inpat_patient_location.location_seq",
			Unit: "inpat_patient_location.ward_code", Measure: "inpat_patient_location.ward_days",
			Acuity: "inpat_patient_location.acuity"}},
	IPWardSameDay: {name: "ipwardsday", service: model.ServiceInpatient, unit: WardUnit,
		query: model.ActivityQuery{From: table("inpat_episode_details"), Episode: "episode_no",
			Unit: "admitting_ward_code", Acuity: "acuity", Condition: "same_day = 1"}},
	IPWardBedHours: {name: "ipwardbhrs", service: model.ServiceInpatient, unit: WardUnit,
		query: model.ActivityQuery{From: wardLocation,
			Episode: "inpat_episode_details.episode_no", Seq: "inpat_patient_location.location_seq",
			Unit: "inpat_patient_location.ward_code", Measure: "inpat_patient_location.ward_hours",
			Acuity: "inpat_patient_location.acuity"}},
	AnaesthMin: {name: "anaesthmin", service: model.ServiceInpatient,
		query: model.ActivityQuery{From: table("inpat_theatre_details"), Episode: "episode_no", Seq: "surgery_seq",
			Measure: "anaesthetic_mins", Acuity: "theatre_acuity"}},
	TheatreMin: {name: "theatremin", service: model.ServiceInpatient,
		query: model.ActivityQuery{From: table("inpat_theatre_details"), Episode: "episode_no", Seq: "surgery_seq",
			Measure: "theatre_mins", Acuity: "theatre_acuity"}},
}

var byName = func() map[string]Subroutine {
	m := make(map[string]Subroutine, len(handlers))
	for s, h := range handlers {
		m[h.name] = s
	}
	return m
}()

// ParseSubroutine maps an event_subroutine_name to its Subroutine.
func ParseSubroutine(name string) (Subroutine, error) {
	s, ok := byName[name]
	if !ok {
		return 0, model.NewConfigError(ErrUnknownSubroutine, "event subroutine not defined",
			"event_subroutine_name", name)
	}
	return s, nil
}

// Subroutines returns every subroutine in declaration order.
func Subroutines() []Subroutine {
	out := make([]Subroutine, 0, len(handlers))
	for s := EDAdmissions; s <= TheatreMin; s++ {
		out = append(out, s)
	}
	return out
}

func (s Subroutine) String() string {
	if h, ok := handlers[s]; ok {
		return h.name
	}
	return fmt.Sprintf("subroutine(%d)", int(s))
}

// Service is the service_code of the events the subroutine builds.
func (s Subroutine) Service() string { return handlers[s].service }

// Unit reports whether the subroutine builds per-ward or per-clinic events.
func (s Subroutine) Unit() UnitKind { return handlers[s].unit }

// Query describes the activity rows the subroutine reads.
func (s Subroutine) Query() model.ActivityQuery { return handlers[s].query }

// CountBased reports whether each activity row counts as a measure of one.
func (s Subroutine) CountBased() bool { return handlers[s].query.Measure == "" }
