package http

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-playground/validator/v10"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/airlens-api/internal/config"
	"github.com/couchcryptid/airlens-api/internal/domain"
	"github.com/couchcryptid/airlens-api/internal/query"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("query")
	})
	return v
}

type aqiQuery struct {
	Gas    string `query:"gas" validate:"omitempty,oneof=CO NO2 O3 SO2"`
	Format string `query:"format" validate:"omitempty,oneof=json geojson"`
}

type pollutedQuery struct {
	Top int
	Gas string `query:"gas" validate:"omitempty,oneof=CO NO2 O3 SO2"`
}

type searchQuery struct {
	City string `query:"city" validate:"required"`
}

// sampleRow is the wire shape of one /aqi row.
type sampleRow struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	CO        float64 `json:"CO"`
	NO2       float64 `json:"NO2"`
	O3        float64 `json:"O3"`
	SO2       float64 `json:"SO2"`
	Composite float64 `json:"composite"`
}

type gasRow struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Value float64 `json:"value"`
}

type pollutedRow struct {
	City      string  `json:"city"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Composite float64 `json:"composite"`
	CO        float64 `json:"CO"`
	NO2       float64 `json:"NO2"`
	O3        float64 `json:"O3"`
	SO2       float64 `json:"SO2"`
}

type searchResponse struct {
	City      string  `json:"city"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Composite float64 `json:"composite"`
	CO        float64 `json:"CO"`
	NO2       float64 `json:"NO2"`
	O3        float64 `json:"O3"`
	SO2       float64 `json:"SO2"`
	GridLat   float64 `json:"grid_lat"`
	GridLon   float64 `json:"grid_lon"`
}

type statsResponse struct {
	Samples          int                `json:"samples"`
	Cells            int                `json:"cells"`
	Dropped          int                `json:"dropped"`
	Maxima           map[string]float64 `json:"maxima"`
	LoadedAt         time.Time          `json:"loaded_at"`
	GeocodingEnabled bool               `json:"geocoding_enabled"`
}

func (s *Server) handleAQI(w http.ResponseWriter, r *http.Request) {
	q := aqiQuery{
		Gas:    strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("gas"))),
		Format: strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))),
	}
	if err := validate.Struct(q); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	geo := q.Format == "geojson"

	if q.Gas != "" {
		gas, err := domain.ParseGasKind(q.Gas)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		readings := s.queries.GasDump(gas, s.opts.DumpStride)
		if geo {
			writeGeoJSON(w, gasFeatures(gas, readings))
			return
		}
		rows := make([]gasRow, len(readings))
		for i, g := range readings {
			rows[i] = gasRow{Lat: g.Lat, Lon: g.Lon, Value: g.Value}
		}
		sharedobs.WriteJSON(w, http.StatusOK, rows)
		return
	}

	samples := s.queries.Dump(s.opts.DumpStride)
	if geo {
		writeGeoJSON(w, sampleFeatures(samples))
		return
	}
	rows := make([]sampleRow, len(samples))
	for i, smp := range samples {
		rows[i] = toSampleRow(smp)
	}
	sharedobs.WriteJSON(w, http.StatusOK, rows)
}

func (s *Server) handlePolluted(w http.ResponseWriter, r *http.Request) {
	q := pollutedQuery{
		Top: s.opts.TopDefault,
		Gas: strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("gas"))),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("top")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid top %q: must be an integer", raw))
			return
		}
		q.Top = clampTop(n)
	}
	if err := validate.Struct(q); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	var ranked []query.RankedSample
	if q.Gas != "" {
		gas, err := domain.ParseGasKind(q.Gas)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		ranked = s.queries.TopPollutedByGas(r.Context(), gas, q.Top)
	} else {
		ranked = s.queries.TopPolluted(r.Context(), q.Top)
	}

	rows := make([]pollutedRow, len(ranked))
	for i, rs := range ranked {
		rows[i] = pollutedRow{
			City:      rs.Place.Name,
			Lat:       rs.Lat,
			Lon:       rs.Lon,
			Composite: rs.Composite,
			CO:        rs.Value(domain.CO),
			NO2:       rs.Value(domain.NO2),
			O3:        rs.Value(domain.O3),
			SO2:       rs.Value(domain.SO2),
		}
	}
	sharedobs.WriteJSON(w, http.StatusOK, rows)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := searchQuery{City: strings.TrimSpace(r.URL.Query().Get("city"))}
	if err := validate.Struct(q); err != nil {
		writeError(w, http.StatusBadRequest, "city name required")
		return
	}

	res, err := s.queries.Search(r.Context(), q.City)
	switch {
	case err == nil:
	case errors.Is(err, query.ErrPlaceNotFound):
		writeError(w, http.StatusNotFound, "city not found")
		return
	case errors.Is(err, domain.ErrGeocodingDisabled):
		writeError(w, http.StatusServiceUnavailable, "geocoding is disabled")
		return
	default:
		s.logger.Error("search failed", "city", q.City, "error", err)
		writeError(w, http.StatusBadGateway, "geocoding service unavailable")
		return
	}

	sharedobs.WriteJSON(w, http.StatusOK, searchResponse{
		City:      res.Query,
		Lat:       res.Place.Lat,
		Lon:       res.Place.Lon,
		Composite: res.Sample.Composite,
		CO:        res.Sample.Value(domain.CO),
		NO2:       res.Sample.Value(domain.NO2),
		O3:        res.Sample.Value(domain.O3),
		SO2:       res.Sample.Value(domain.SO2),
		GridLat:   res.Sample.Lat,
		GridLon:   res.Sample.Lon,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	st := s.queries.Stats()
	maxima := make(map[string]float64, domain.GasCount)
	for _, g := range domain.AllGases {
		maxima[g.String()] = st.Maxima.Get(g)
	}
	sharedobs.WriteJSON(w, http.StatusOK, statsResponse{
		Samples:          st.Samples,
		Cells:            st.Cells,
		Dropped:          st.Dropped,
		Maxima:           maxima,
		LoadedAt:         st.LoadedAt,
		GeocodingEnabled: st.GeocodingEnabled,
	})
}

// clampTop maps a requested row count onto 0..config.MaxTop. Negative counts
// give an empty ranking; every row costs one paced geocoder call.
func clampTop(n int) int {
	return min(max(n, 0), config.MaxTop)
}

func toSampleRow(s domain.Sample) sampleRow {
	return sampleRow{
		Lat:       s.Lat,
		Lon:       s.Lon,
		CO:        s.Value(domain.CO),
		NO2:       s.Value(domain.NO2),
		O3:        s.Value(domain.O3),
		SO2:       s.Value(domain.SO2),
		Composite: s.Composite,
	}
}

func sampleFeatures(samples []domain.Sample) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, s := range samples {
		f := geojson.NewFeature(orb.Point{s.Lon, s.Lat})
		for _, g := range domain.AllGases {
			f.Properties[g.String()] = s.Value(g)
		}
		f.Properties["composite"] = s.Composite
		fc.Append(f)
	}
	return fc
}

func gasFeatures(gas domain.GasKind, readings []query.GasReading) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, g := range readings {
		f := geojson.NewFeature(orb.Point{g.Lon, g.Lat})
		f.Properties["gas"] = gas.String()
		f.Properties["value"] = g.Value
		fc.Append(f)
	}
	return fc
}

func writeGeoJSON(w http.ResponseWriter, fc *geojson.FeatureCollection) {
	body, err := fc.MarshalJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode geojson")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(body) //nolint:errcheck // client may have gone away
}

// validationMessage turns validator errors into a client-facing message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s parameter is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("invalid %s %q, choose from %s", fe.Field(), fe.Value(), strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("invalid %s", fe.Field())
	}
}
