// Package intake implements the per-device Station 1 capture flow: IMEI
// lookup or manual identification, condition tagging, photo capture and
// submission.
package intake

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"device-intake-backend/internal/model"
	"device-intake-backend/internal/workflow"
)

// Variant is the workflow chosen up front for a device.
type Variant string

const (
	// VariantComplete requires details and both photos before submission.
	VariantComplete Variant = "complete"
	// VariantDetailsOnly defers photos to Station 2.
	VariantDetailsOnly Variant = "details-only"
)

// Phase is the explicit state of the intake form.
type Phase int

const (
	// PhaseVariant: the inspector picks complete vs details-only.
	PhaseVariant Phase = iota
	// PhaseDetails: identification, conditions and photo slots are edited.
	PhaseDetails
	// PhasePhotoPrompt: the front photo just landed and the form asks
	// whether to capture the back photo now or later.
	PhasePhotoPrompt
)

var (
	ErrWrongPhase       = errors.New("operation not allowed in current phase")
	ErrLookupDisabled   = errors.New("imei lookup disabled in manual mode")
	ErrManualDisabled   = errors.New("manual details disabled in lookup mode")
	ErrIMEITooShort     = errors.New("imei must be at least 8 digits")
	ErrUnknownCondition = errors.New("unknown condition tag")
	ErrNotReady         = errors.New("form is not ready for submission")
)

type pendingUpload struct {
	side string
	uri  string
}

// Form is the Station 1 device intake state machine. Not safe for
// concurrent use; one form serves one inspector screen.
type Form struct {
	repo     workflow.Repository
	resolver workflow.IMEIResolver

	orderID       string
	inspectorName string

	phase      Phase
	variant    Variant
	manual     bool
	imei       string
	identity   *workflow.DeviceIdentity
	warning    string
	serial     string
	conditions map[string]bool
	frontImage string
	backImage  string

	// Submission progress, kept across retries so a failed upload never
	// discards the already-saved device.
	saved   *model.Device
	pending []pendingUpload
}

// NewForm creates a form for one device of the given order.
func NewForm(repo workflow.Repository, resolver workflow.IMEIResolver, orderID, inspectorName string) *Form {
	f := &Form{
		repo:          repo,
		resolver:      resolver,
		orderID:       orderID,
		inspectorName: inspectorName,
		phase:         PhaseVariant,
	}
	f.reset()
	f.phase = PhaseVariant
	return f
}

// reset clears per-device state and regenerates the serial number.
func (f *Form) reset() {
	f.phase = PhaseDetails
	f.manual = false
	f.imei = ""
	f.identity = nil
	f.warning = ""
	f.serial = GenerateSerial()
	f.conditions = make(map[string]bool)
	f.frontImage = ""
	f.backImage = ""
	f.saved = nil
	f.pending = nil
}

// GenerateSerial builds a client-side serial number from a timestamp
// fragment and a zero-padded 3-digit random suffix.
func GenerateSerial() string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	return fmt.Sprintf("SN%s%03d", ts[6:], rand.Intn(1000))
}

// Phase returns the current phase.
func (f *Form) Phase() Phase { return f.phase }

// Variant returns the chosen workflow variant.
func (f *Form) Variant() Variant { return f.variant }

// SerialNumber returns the auto-generated, read-only serial number.
func (f *Form) SerialNumber() string { return f.serial }

// Warning returns the current non-blocking warning, if any.
func (f *Form) Warning() string { return f.warning }

// Identity returns the brand/model resolved so far, nil when unknown.
func (f *Form) Identity() *workflow.DeviceIdentity { return f.identity }

// SelectVariant picks the workflow for this device and opens the form.
func (f *Form) SelectVariant(v Variant) error {
	if f.phase != PhaseVariant {
		return ErrWrongPhase
	}
	if v != VariantComplete && v != VariantDetailsOnly {
		return fmt.Errorf("unknown workflow variant %q", v)
	}
	f.variant = v
	f.phase = PhaseDetails
	return nil
}

// SetManualEntry toggles between lookup and manual identification. The
// modes are mutually exclusive; switching clears the resolved identity.
func (f *Form) SetManualEntry(manual bool) {
	if f.manual == manual {
		return
	}
	f.manual = manual
	f.identity = nil
	f.warning = ""
}

// ManualEntry reports whether manual mode is active.
func (f *Form) ManualEntry() bool { return f.manual }

// SetIMEI stores the entered IMEI.
func (f *Form) SetIMEI(imei string) { f.imei = imei }

// Lookup resolves the entered IMEI via the backend. An invalid IMEI does
// not block progress; it sets a warning and still fills brand/model.
func (f *Form) Lookup(ctx context.Context) (*workflow.DeviceIdentity, error) {
	if f.phase != PhaseDetails {
		return nil, ErrWrongPhase
	}
	if f.manual {
		return nil, ErrLookupDisabled
	}
	if len(f.imei) < 8 {
		return nil, ErrIMEITooShort
	}

	historyID, err := f.resolver.LookupIMEI(ctx, f.imei)
	if err != nil {
		return nil, err
	}
	identity, err := f.resolver.IMEIResult(ctx, historyID)
	if err != nil {
		return nil, err
	}

	f.identity = identity
	if identity.Valid {
		f.warning = ""
	} else {
		f.warning = "The IMEI appears to be invalid. You can still proceed, but please check the number."
	}
	return identity, nil
}

// SetManualDetails records brand and model entered by hand.
func (f *Form) SetManualDetails(brand, deviceModel string) error {
	if f.phase != PhaseDetails {
		return ErrWrongPhase
	}
	if !f.manual {
		return ErrManualDisabled
	}
	f.identity = &workflow.DeviceIdentity{Brand: brand, Model: deviceModel, Valid: true}
	return nil
}

// ToggleCondition flips membership of a catalog tag. Tags are not
// mutually exclusive.
func (f *Form) ToggleCondition(id string) error {
	if !model.ValidConditionID(id) {
		return fmt.Errorf("condition %q: %w", id, ErrUnknownCondition)
	}
	if f.conditions[id] {
		delete(f.conditions, id)
	} else {
		f.conditions[id] = true
	}
	return nil
}

// Conditions returns the selected tag ids.
func (f *Form) Conditions() []string {
	ids := make([]string, 0, len(f.conditions))
	for _, tag := range model.ConditionCatalog {
		if f.conditions[tag.ID] {
			ids = append(ids, tag.ID)
		}
	}
	return ids
}

// AttachPhoto records a captured photo for one side. Capturing the front
// photo while the back slot is empty moves to PhasePhotoPrompt so the
// caller can ask whether to take the back photo now.
func (f *Form) AttachPhoto(side, uri string) error {
	if f.phase != PhaseDetails {
		return ErrWrongPhase
	}
	switch side {
	case model.SideFront:
		f.frontImage = uri
		if f.backImage == "" {
			f.phase = PhasePhotoPrompt
		}
	case model.SideBack:
		f.backImage = uri
	default:
		return fmt.Errorf("unknown photo side %q", side)
	}
	return nil
}

// AnswerPhotoPrompt resolves the prompt after a front capture. Either way
// the form returns to detail editing; the back photo can still be taken
// later from the details phase.
func (f *Form) AnswerPhotoPrompt(takeBackNow bool) error {
	if f.phase != PhasePhotoPrompt {
		return ErrWrongPhase
	}
	f.phase = PhaseDetails
	_ = takeBackNow // the caller drives the camera; the form just leaves the prompt
	return nil
}

// CanSubmit reports whether the save action is enabled: identification
// must be resolved, and in the complete variant both photos must be
// attached.
func (f *Form) CanSubmit() bool {
	if f.phase != PhaseDetails {
		return false
	}
	if f.imei == "" && !f.manual {
		return false
	}
	if f.identity == nil || f.identity.Brand == "" || f.identity.Model == "" {
		return false
	}
	if f.variant == VariantComplete && (f.frontImage == "" || f.backImage == "") {
		return false
	}
	return true
}

// Submit persists the device and then uploads any attached photos
// sequentially, front before back. On failure the error surfaces and the
// already-saved device plus remaining uploads are kept, so calling Submit
// again retries only the missing steps. After full success the form
// resets for the next device and returns the saved record.
func (f *Form) Submit(ctx context.Context) (*model.Device, error) {
	if f.saved == nil {
		if !f.CanSubmit() {
			return nil, ErrNotReady
		}
		device, err := f.repo.CreateDevice(ctx, workflow.CreateDeviceRequest{
			OrderID:       f.orderID,
			IMEI:          f.imei,
			SerialNumber:  f.serial,
			Brand:         f.identity.Brand,
			Model:         f.identity.Model,
			Conditions:    f.Conditions(),
			InspectorName: f.inspectorName,
		})
		if err != nil {
			return nil, err
		}
		f.saved = device
		if f.frontImage != "" {
			f.pending = append(f.pending, pendingUpload{side: model.SideFront, uri: f.frontImage})
		}
		if f.backImage != "" {
			f.pending = append(f.pending, pendingUpload{side: model.SideBack, uri: f.backImage})
		}
	}

	for len(f.pending) > 0 {
		next := f.pending[0]
		if _, err := f.repo.UploadDeviceImage(ctx, f.saved.ID, next.side, next.uri); err != nil {
			return nil, fmt.Errorf("device saved but %s photo upload failed: %w", next.side, err)
		}
		f.pending = f.pending[1:]
	}

	device := f.saved
	f.reset()
	return device, nil
}
