package gateway

import (
	"net/http"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type metricView struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Unit        string      `json:"unit,omitempty"`
	Points      []pointView `json:"points"`
}

type pointView struct {
	Attributes map[string]string `json:"attributes,omitempty"`
	Value      float64           `json:"value"`
	Count      uint64            `json:"count,omitempty"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil || !s.metrics.Enabled() {
		writeError(w, http.StatusNotFound, "telemetry_disabled", "telemetry is not enabled")
		return
	}
	rm, err := s.metrics.Collect(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, flattenMetrics(rm))
}

// flattenMetrics turns collected OTel data into a plain listing sorted by
// metric name. Histograms report their sum as value.
func flattenMetrics(rm metricdata.ResourceMetrics) []metricView {
	var out []metricView
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			mv := metricView{Name: m.Name, Description: m.Description, Unit: m.Unit}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					mv.Points = append(mv.Points, pointView{Attributes: attrMap(dp.Attributes), Value: float64(dp.Value)})
				}
			case metricdata.Sum[float64]:
				for _, dp := range data.DataPoints {
					mv.Points = append(mv.Points, pointView{Attributes: attrMap(dp.Attributes), Value: dp.Value})
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					mv.Points = append(mv.Points, pointView{Attributes: attrMap(dp.Attributes), Value: float64(dp.Value)})
				}
			case metricdata.Gauge[float64]:
				for _, dp := range data.DataPoints {
					mv.Points = append(mv.Points, pointView{Attributes: attrMap(dp.Attributes), Value: dp.Value})
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					mv.Points = append(mv.Points, pointView{Attributes: attrMap(dp.Attributes), Value: dp.Sum, Count: dp.Count})
				}
			default:
				continue
			}
			out = append(out, mv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func attrMap(set attribute.Set) map[string]string {
	if set.Len() == 0 {
		return nil
	}
	out := make(map[string]string, set.Len())
	for iter := set.Iter(); iter.Next(); {
		kv := iter.Attribute()
		out[string(kv.Key)] = kv.Value.Emit()
	}
	return out
}
