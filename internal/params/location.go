package params

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/rs/zerolog/log"

	"backoffice/internal/core"
)

// Location query keys.
const (
	KeyPage             = "page"
	KeyPerPage          = "perPage"
	KeySort             = "sort"
	KeyOrder            = "order"
	KeyFilter           = "filter"
	KeyDisplayedFilters = "displayedFilters"
)

var locationKeys = []string{KeyPage, KeyPerPage, KeySort, KeyOrder, KeyFilter, KeyDisplayedFilters}

// HasQuery reports whether v carries any list parameter.
func HasQuery(v url.Values) bool {
	for _, k := range locationKeys {
		if v.Has(k) {
			return true
		}
	}
	return false
}

// Encode serializes q into location query values. Filters are JSON encoded.
func Encode(q Query) url.Values {
	v := url.Values{}
	v.Set(KeyPage, strconv.Itoa(q.Page))
	v.Set(KeyPerPage, strconv.Itoa(q.PerPage))
	if q.Sort != "" {
		v.Set(KeySort, q.Sort)
		v.Set(KeyOrder, string(q.Order))
	}
	if len(q.Filter) > 0 {
		if s, err := encodeJSON(q.Filter); err == nil {
			v.Set(KeyFilter, s)
		}
	}
	if len(q.DisplayedFilters) > 0 {
		if s, err := encodeJSON(q.DisplayedFilters); err == nil {
			v.Set(KeyDisplayedFilters, s)
		}
	}
	return v
}

// Decode reads the list parameters from v over base. Malformed values are
// logged and ignored.
func Decode(v url.Values, base Query) Query {
	q := base.Clone()
	if s := v.Get(KeyPage); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			q.Page = n
		} else {
			log.Debug().Str("value", s).Msg("ignoring malformed page parameter")
		}
	}
	if s := v.Get(KeyPerPage); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			q.PerPage = n
		} else {
			log.Debug().Str("value", s).Msg("ignoring malformed perPage parameter")
		}
	}
	if s := v.Get(KeySort); s != "" {
		q.Sort = s
	}
	if s := core.SortOrder(v.Get(KeyOrder)); s.Valid() {
		q.Order = s
	}
	if s := v.Get(KeyFilter); s != "" {
		var f core.Filter
		if err := json.Unmarshal([]byte(s), &f); err != nil {
			log.Debug().Err(err).Msg("ignoring malformed filter parameter")
		} else {
			q.Filter = f
		}
	}
	if s := v.Get(KeyDisplayedFilters); s != "" {
		var d map[string]bool
		if err := json.Unmarshal([]byte(s), &d); err != nil {
			log.Debug().Err(err).Msg("ignoring malformed displayedFilters parameter")
		} else {
			q.DisplayedFilters = d
		}
	}
	if q.Filter == nil {
		q.Filter = core.Filter{}
	}
	if q.DisplayedFilters == nil {
		q.DisplayedFilters = map[string]bool{}
	}
	return q
}

// encodeJSON marshals v with sorted map keys and without HTML escaping.
func encodeJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
