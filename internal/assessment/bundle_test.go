package assessment

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/assessment/entity"
)

func bundleJSON(t *testing.T, f entity.Fields, edit func(m map[string]any)) []byte {
	t.Helper()
	b, err := json.Marshal(f)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	if edit != nil {
		edit(m)
	}
	b, err = json.Marshal(m)
	require.NoError(t, err)
	return b
}

func TestDecodeFields_Complete(t *testing.T) {
	in := fields("Maria", entity.NewDate(2024, time.March, 1))
	got, err := DecodeFields(bytes.NewReader(bundleJSON(t, in, nil)))
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestDecodeFields_RejectsKeySetMismatch(t *testing.T) {
	in := fields("Maria", entity.NewDate(2024, time.March, 1))

	_, err := DecodeFields(bytes.NewReader(bundleJSON(t, in, func(m map[string]any) { m["shoe_size"] = 30 })))
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, err.Error(), "shoe_size")

	_, err = DecodeFields(bytes.NewReader(bundleJSON(t, in, func(m map[string]any) { delete(m, "visit_reason") })))
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, err.Error(), "visit_reason")

	_, err = DecodeFields(bytes.NewReader(bundleJSON(t, in, func(m map[string]any) { m["weight_kg"] = "heavy" })))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = DecodeFields(strings.NewReader(`[1,2]`))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
