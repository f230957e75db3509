package ml

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"crimewatch/pkg/errors"
)

// Feature names in classifier input order
const (
	FieldCity      = "city"
	FieldAgeGroup  = "age_group"
	FieldGender    = "gender"
	FieldTimeOfDay = "time_of_day"
	FieldMonth     = "month"
	FieldDayOfWeek = "day_of_week"

	// LabelField names the encoder for the target variable
	LabelField = "crime"
)

// EncoderSchemaVersion is bumped whenever encoding semantics change
const EncoderSchemaVersion = 1

// FeatureOrder is the fixed column order of every feature vector
var FeatureOrder = []string{FieldCity, FieldAgeGroup, FieldGender, FieldTimeOfDay, FieldMonth, FieldDayOfWeek}

// ContractHash identifies the feature layout a bundle was trained against
func ContractHash() string {
	h := sha256.New()
	fmt.Fprintf(h, "v%d|%s|%s", EncoderSchemaVersion, strings.Join(FeatureOrder, ","), LabelField)
	return hex.EncodeToString(h.Sum(nil))
}

// LabelEncoder maps tokens to dense codes 0..n-1 in sorted token order.
// It is immutable once fitted.
type LabelEncoder struct {
	classes []string
	index   map[string]int
}

// FitLabelEncoder builds an encoder over the distinct tokens
func FitLabelEncoder(tokens []string) *LabelEncoder {
	seen := make(map[string]struct{}, 16)
	for _, t := range tokens {
		seen[t] = struct{}{}
	}
	classes := make([]string, 0, len(seen))
	for t := range seen {
		classes = append(classes, t)
	}
	slices.Sort(classes)
	return newLabelEncoder(classes)
}

func newLabelEncoder(classes []string) *LabelEncoder {
	idx := make(map[string]int, len(classes))
	for i, c := range classes {
		idx[c] = i
	}
	return &LabelEncoder{classes: classes, index: idx}
}

// Len returns the vocabulary size
func (e *LabelEncoder) Len() int { return len(e.classes) }

// Classes returns a copy of the vocabulary in code order
func (e *LabelEncoder) Classes() []string { return slices.Clone(e.classes) }

// Contains reports whether tok was seen at fit time
func (e *LabelEncoder) Contains(tok string) bool {
	_, ok := e.index[tok]
	return ok
}

// Encode returns the code for tok
func (e *LabelEncoder) Encode(tok string) (int, error) {
	code, ok := e.index[tok]
	if !ok {
		return 0, errors.Wrapf(errors.ErrUnknownCategory, "token %q", tok)
	}
	return code, nil
}

// Decode returns the token for code
func (e *LabelEncoder) Decode(code int) (string, error) {
	if code < 0 || code >= len(e.classes) {
		return "", errors.Newf("code %d out of range [0,%d)", code, len(e.classes))
	}
	return e.classes[code], nil
}

type labelEncoderJSON struct {
	Classes []string `json:"classes"`
}

func (e *LabelEncoder) MarshalJSON() ([]byte, error) {
	return json.Marshal(labelEncoderJSON{Classes: e.classes})
}

func (e *LabelEncoder) UnmarshalJSON(data []byte) error {
	var raw labelEncoderJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for i := 1; i < len(raw.Classes); i++ {
		if raw.Classes[i-1] >= raw.Classes[i] {
			return errors.Newf("encoder vocabulary not strictly sorted at %d", i)
		}
	}
	*e = *newLabelEncoder(raw.Classes)
	return nil
}

// EncoderSet holds one encoder per feature plus the label encoder.
type EncoderSet struct {
	SchemaVersion int                      `json:"schema_version"`
	Features      map[string]*LabelEncoder `json:"features"`
	Label         *LabelEncoder            `json:"label"`
}

// FitEncoderSet fits encoders from rows laid out in FeatureOrder
func FitEncoderSet(features [][]string, labels []string) (*EncoderSet, error) {
	if len(features) != len(labels) {
		return nil, errors.Newf("features/labels length mismatch: %d vs %d", len(features), len(labels))
	}
	cols := make([][]string, len(FeatureOrder))
	for _, row := range features {
		if len(row) != len(FeatureOrder) {
			return nil, errors.Newf("feature row has %d columns, want %d", len(row), len(FeatureOrder))
		}
		for i, tok := range row {
			cols[i] = append(cols[i], tok)
		}
	}

	set := &EncoderSet{
		SchemaVersion: EncoderSchemaVersion,
		Features:      make(map[string]*LabelEncoder, len(FeatureOrder)),
		Label:         FitLabelEncoder(labels),
	}
	for i, name := range FeatureOrder {
		set.Features[name] = FitLabelEncoder(cols[i])
	}
	return set, nil
}

// Validate checks that every feature encoder is present
func (s *EncoderSet) Validate() error {
	if s.SchemaVersion != EncoderSchemaVersion {
		return errors.Newf("encoder schema version %d, want %d", s.SchemaVersion, EncoderSchemaVersion)
	}
	if s.Label == nil || s.Label.Len() == 0 {
		return errors.New("label encoder missing")
	}
	for _, name := range FeatureOrder {
		if enc, ok := s.Features[name]; !ok || enc == nil {
			return errors.Newf("encoder for %s missing", name)
		}
	}
	return nil
}

// Feature returns the encoder for a named feature
func (s *EncoderSet) Feature(name string) *LabelEncoder {
	return s.Features[name]
}

// Encode turns tokens in FeatureOrder into a feature vector. The first field
// whose token is unknown is reported as *errors.UnknownCategoryError.
func (s *EncoderSet) Encode(tokens []string) ([]float64, error) {
	if len(tokens) != len(FeatureOrder) {
		return nil, errors.Newf("got %d tokens, want %d", len(tokens), len(FeatureOrder))
	}
	vec := make([]float64, len(FeatureOrder))
	for i, name := range FeatureOrder {
		code, err := s.Features[name].Encode(tokens[i])
		if err != nil {
			return nil, errors.NewUnknownCategoryError(name, tokens[i])
		}
		vec[i] = float64(code)
	}
	return vec, nil
}

// EncodeLabels maps label tokens to codes
func (s *EncoderSet) EncodeLabels(labels []string) ([]int, error) {
	out := make([]int, len(labels))
	for i, l := range labels {
		code, err := s.Label.Encode(l)
		if err != nil {
			return nil, errors.Wrap(err, "encode label")
		}
		out[i] = code
	}
	return out, nil
}
