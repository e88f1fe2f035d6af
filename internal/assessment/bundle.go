package assessment

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"

	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/assessment/entity"
)

var fieldKeySet = func() map[string]bool {
	m := map[string]bool{}
	for _, k := range entity.FieldKeys() {
		m[k] = true
	}
	return m
}()

// DecodeFields reads a complete field bundle. The JSON object must carry
// exactly the schema's keys; unknown, missing or mistyped values are
// validation errors.
func DecodeFields(r io.Reader) (entity.Fields, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return entity.Fields{}, err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return entity.Fields{}, apperr.Validation("bundle must be a JSON object: %v", err)
	}
	var unknown, missing []string
	for k := range keys {
		if !fieldKeySet[k] {
			unknown = append(unknown, k)
		}
	}
	for k := range fieldKeySet {
		if _, ok := keys[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return entity.Fields{}, apperr.Validation("unknown fields: %s", strings.Join(unknown, ", "))
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return entity.Fields{}, apperr.Validation("missing fields: %s", strings.Join(missing, ", "))
	}

	var f entity.Fields
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return entity.Fields{}, apperr.Validation("field %s: expected %s", typeErr.Field, typeErr.Type)
		}
		return entity.Fields{}, apperr.Validation("%v", err)
	}
	return f, nil
}
