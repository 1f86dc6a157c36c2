package docs

import (
	"encoding/json"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggo/swag"
)

func TestSwaggerDocument(t *testing.T) {
	raw, err := swag.ReadDoc(SwaggerInfo.InstanceName())
	require.NoError(t, err)

	var doc struct {
		Paths       map[string]map[string]json.RawMessage `json:"paths"`
		Definitions map[string]json.RawMessage            `json:"definitions"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	t.Run("ServedRoutesAreDocumented", func(t *testing.T) {
		routes := map[string][]string{
			"/s/{code}":                               {"get"},
			"/api/v1/short-links":                     {"post"},
			"/api/v1/engagement/views":                {"post"},
			"/api/v1/dispatches":                      {"post", "get"},
			"/api/v1/dispatches/{id}/schedule":        {"put"},
			"/api/v1/scheduler/run":                   {"post"},
			"/api/v1/media":                           {"post"},
			"/api/v1/media/{uuid}":                    {"get"},
			"/api/v1/health":                          {"get"},
			"/api/v1/campaigns/{campaign_id}/metrics": {"get"},
		}
		for path, methods := range routes {
			ops, ok := doc.Paths[path]
			if !assert.True(t, ok, "missing path %s", path) {
				continue
			}
			for _, m := range methods {
				assert.Contains(t, ops, m, "missing %s %s", strings.ToUpper(m), path)
			}
		}
	})

	t.Run("ReferencesResolve", func(t *testing.T) {
		refs := regexp.MustCompile(`"\$ref": "#/definitions/([^"]+)"`).FindAllStringSubmatch(raw, -1)
		require.NotEmpty(t, refs)
		for _, ref := range refs {
			assert.Contains(t, doc.Definitions, ref[1])
		}
	})
}
