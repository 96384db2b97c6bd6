package monitor

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/banshee-data/lidarsynth/internal/config"
	"github.com/banshee-data/lidarsynth/internal/httputil"
	"github.com/banshee-data/lidarsynth/internal/lidar/l4perception"
	"github.com/banshee-data/lidarsynth/internal/lidar/l5tracks"
	"github.com/banshee-data/lidarsynth/internal/lidar/pipeline"
	"github.com/banshee-data/lidarsynth/internal/monitoring"
)

// ClusterView is the JSON form of a cluster from the last rotation.
type ClusterView struct {
	ID       int     `json:"id"`
	Size     int     `json:"size"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Angle    float64 `json:"angle"`
	Distance float64 `json:"distance"`
}

// ObjectView is the JSON form of a tracked object.
type ObjectView struct {
	ID          string  `json:"id"`
	Channel     uint8   `json:"channel"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Angle       float64 `json:"angle"`
	Distance    float64 `json:"distance"`
	Speed       float64 `json:"speed"`
	Note        int     `json:"note"`
	Modulation  int     `json:"modulation"`
	Sounding    bool    `json:"sounding"`
	Updates     int     `json:"updates"`
	AgeSeconds  float64 `json:"age_seconds"`
	LastUpdated string  `json:"last_updated"`
}

// State is the body of GET /api/state.
type State struct {
	Clusters []ClusterView           `json:"clusters"`
	Objects  []ObjectView            `json:"objects"`
	Tracker  l5tracks.TrackerStats   `json:"tracker"`
	Runtime  *pipeline.StatsSnapshot `json:"runtime,omitempty"`
	Config   *config.TuningConfig    `json:"config"`
}

func clusterViews(clusters []l4perception.Cluster) []ClusterView {
	out := make([]ClusterView, 0, len(clusters))
	for _, c := range clusters {
		p := c.Centroid()
		angle, dist := l4perception.CartesianToPolar(p)
		out = append(out, ClusterView{ID: c.ID, Size: c.Size(), X: p.X, Y: p.Y, Angle: angle, Distance: dist})
	}
	return out
}

func objectViews(objects []l5tracks.TrackedObject) []ObjectView {
	out := make([]ObjectView, 0, len(objects))
	for _, o := range objects {
		out = append(out, ObjectView{
			ID:          o.ID,
			Channel:     o.Channel,
			X:           o.X,
			Y:           o.Y,
			Angle:       o.Angle,
			Distance:    o.Distance,
			Speed:       o.Speed,
			Note:        o.CurrentNote,
			Modulation:  o.Modulation,
			Sounding:    o.Sounding,
			Updates:     o.Updates,
			AgeSeconds:  o.LastUpdate.Sub(o.Created).Seconds(),
			LastUpdated: o.LastUpdate.Format("15:04:05.000"),
		})
	}
	return out
}

func (s *Server) snapshot() State {
	st := State{
		Clusters: clusterViews(s.tracker.Clusters()),
		Objects:  objectViews(s.tracker.Objects()),
		Tracker:  s.tracker.Stats(),
		Config:   s.currentTuning(),
	}
	if s.stats != nil {
		snap := s.stats.Snapshot()
		st.Runtime = &snap
	}
	return st
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s.snapshot())
}

// currentTuning returns the startup configuration with the runtime fields
// replaced by the tracker's live values.
func (s *Server) currentTuning() *config.TuningConfig {
	s.mu.Lock()
	out := config.EmptyTuningConfig()
	out.Merge(s.tuning)
	s.mu.Unlock()

	c := s.tracker.Config()
	maxDist, clusterDist := c.MaxDistance, c.MaxClusterDistance
	minPts, root, npr := c.MinPoints, c.RootNote, c.NotesPerRotation
	vel := int(c.Velocity)
	scan, match, scale := c.ScanMode.String(), c.MatchMode.String(), c.Scale.String()
	first, last := int(c.FirstChannel), int(c.LastChannel)

	out.MaxDistanceCm = &maxDist
	out.MaxClusterDistanceCm = &clusterDist
	out.MinPointsPerCluster = &minPts
	out.ScanMode = &scan
	out.MatchMode = &match
	out.RootNote = &root
	out.ScaleType = &scale
	out.NotesPerRotation = &npr
	out.NoteVelocity = &vel
	out.FirstChannel = &first
	out.LastChannel = &last
	return out
}

// restartOnly lists the fields that are read once at startup.
func restartOnly(u *config.TuningConfig) []string {
	var fields []string
	add := func(set bool, name string) {
		if set {
			fields = append(fields, name)
		}
	}
	add(u.FirstChannel != nil, "first_channel")
	add(u.LastChannel != nil, "last_channel")
	add(u.BufferCapacity != nil, "buffer_capacity")
	add(u.RotationTimeout != nil, "rotation_timeout")
	add(u.StatsInterval != nil, "stats_interval")
	add(u.SerialBaudRate != nil, "serial_baud_rate")
	add(u.SerialDataBits != nil, "serial_data_bits")
	add(u.SerialStopBits != nil, "serial_stop_bits")
	add(u.SerialParity != nil, "serial_parity")
	return fields
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSON(w, http.StatusOK, s.currentTuning())
	case http.MethodPost:
		s.updateConfig(w, r)
	default:
		httputil.MethodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// updateConfig applies a partial TuningConfig document. Only fields the
// tracker can change while running are accepted; the whole update is
// validated before any of it is applied.
func (s *Server) updateConfig(w http.ResponseWriter, r *http.Request) {
	var update config.TuningConfig
	if err := httputil.DecodeJSON(w, r, &update); err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid config: %v", err))
		return
	}
	if fields := restartOnly(&update); len(fields) > 0 {
		httputil.WriteJSONError(w, http.StatusBadRequest, fmt.Sprintf("%s cannot be changed at runtime", strings.Join(fields, ", ")))
		return
	}

	merged := s.currentTuning()
	merged.Merge(&update)
	if err := merged.Validate(); err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	edit, err := trackerUpdate(&update)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	s.tuning.Merge(&update)
	s.mu.Unlock()
	s.tracker.UpdateConfig(edit)

	body, _ := json.Marshal(&update)
	monitoring.Logf("[monitor] config updated: %s", body)
	httputil.WriteJSON(w, http.StatusOK, s.currentTuning())
}

// trackerUpdate converts the set fields of u into one edit of the tracker
// config, so a rotation never sees half of an update. Enum names are parsed
// up front so a bad name applies nothing.
func trackerUpdate(u *config.TuningConfig) (func(*l5tracks.TrackerConfig), error) {
	var (
		scan  *l4perception.ScanMode
		match *l5tracks.MatchMode
		scale *l5tracks.ScaleType
	)
	if u.ScanMode != nil {
		m, err := l4perception.ParseScanMode(*u.ScanMode)
		if err != nil {
			return nil, err
		}
		scan = &m
	}
	if u.MatchMode != nil {
		m, err := l5tracks.ParseMatchMode(*u.MatchMode)
		if err != nil {
			return nil, err
		}
		match = &m
	}
	if u.ScaleType != nil {
		st, err := l5tracks.ParseScaleType(*u.ScaleType)
		if err != nil {
			return nil, err
		}
		scale = &st
	}

	return func(c *l5tracks.TrackerConfig) {
		if u.MaxDistanceCm != nil {
			c.MaxDistance = *u.MaxDistanceCm
		}
		if u.MaxClusterDistanceCm != nil {
			c.MaxClusterDistance = *u.MaxClusterDistanceCm
		}
		if u.MinPointsPerCluster != nil {
			c.MinPoints = *u.MinPointsPerCluster
		}
		if scan != nil {
			c.ScanMode = *scan
		}
		if match != nil {
			c.MatchMode = *match
		}
		if u.RootNote != nil {
			c.RootNote = *u.RootNote
		}
		if scale != nil {
			c.Scale = *scale
		}
		if u.NotesPerRotation != nil {
			c.NotesPerRotation = *u.NotesPerRotation
		}
		if u.NoteVelocity != nil {
			c.Velocity = uint8(*u.NoteVelocity)
		}
	}, nil
}
