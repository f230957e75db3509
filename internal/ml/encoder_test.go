package ml

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crimewatch/pkg/errors"
)

func TestLabelEncoder_SortedVocabularyAndRoundTrip(t *testing.T) {
	enc := FitLabelEncoder([]string{"Mumbai", "Delhi", "Pune", "Delhi"})

	assert.Equal(t, []string{"Delhi", "Mumbai", "Pune"}, enc.Classes())
	for _, tok := range []string{"Delhi", "Mumbai", "Pune"} {
		code, err := enc.Encode(tok)
		require.NoError(t, err)
		got, err := enc.Decode(code)
		require.NoError(t, err)
		assert.Equal(t, tok, got)
	}

	_, err := enc.Encode("Atlantis")
	assert.True(t, errors.Is(err, errors.ErrUnknownCategory))

	_, err = enc.Decode(3)
	assert.Error(t, err)
}

func TestLabelEncoder_JSON(t *testing.T) {
	enc := FitLabelEncoder([]string{"b", "a", "c"})
	data, err := json.Marshal(enc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"classes":["a","b","c"]}`, string(data))

	var back LabelEncoder
	require.NoError(t, json.Unmarshal(data, &back))
	code, err := back.Encode("c")
	require.NoError(t, err)
	assert.Equal(t, 2, code)

	assert.Error(t, json.Unmarshal([]byte(`{"classes":["b","a"]}`), &back))
}

func TestEncoderSet_EncodeReportsFirstUnknownField(t *testing.T) {
	set, err := FitEncoderSet(
		[][]string{
			{"Delhi", "19-30", "M", "Night", "3", "Monday"},
			{"Mumbai", "31-45", "F", "Morning", "4", "Tuesday"},
		},
		[]string{"Theft", "Burglary"},
	)
	require.NoError(t, err)
	require.NoError(t, set.Validate())

	vec, err := set.Encode([]string{"Mumbai", "19-30", "F", "Night", "4", "Monday"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0, 1, 1, 0}, vec)

	_, err = set.Encode([]string{"Mumbai", "19-30", "X", "Dawn", "4", "Monday"})
	var uc *errors.UnknownCategoryError
	require.True(t, errors.As(err, &uc))
	assert.Equal(t, FieldGender, uc.Field)
	assert.Equal(t, "X", uc.Value)

	labels, err := set.EncodeLabels([]string{"Theft", "Burglary"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, labels)
}

func TestEncoderSet_JSONRoundTrip(t *testing.T) {
	set, err := FitEncoderSet([][]string{{"Delhi", "19-30", "M", "Night", "3", "Monday"}}, []string{"Theft"})
	require.NoError(t, err)

	data, err := json.Marshal(set)
	require.NoError(t, err)

	var back EncoderSet
	require.NoError(t, json.Unmarshal(data, &back))
	require.NoError(t, back.Validate())
	assert.Equal(t, []string{"Delhi"}, back.Feature(FieldCity).Classes())
	assert.Equal(t, []string{"Theft"}, back.Label.Classes())
}

func TestContractHash_Stable(t *testing.T) {
	assert.Equal(t, ContractHash(), ContractHash())
	assert.Len(t, ContractHash(), 64)
}
