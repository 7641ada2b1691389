package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// wireTime renders the capture timestamp for the wire.
func wireTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Encode serializes a record to its broadcast wire form: a single JSON
// object with a "type" discriminant, a "systemTime" capture timestamp, and
// the variant's fields in lower-camel-case.
//
// Each variant has an explicit wire struct here. Adding a variant without a
// wire mapping is an error, not a silent reflective fallback.
func Encode(r Record) ([]byte, error) {
	switch e := r.(type) {
	case ShiftStarted:
		return json.Marshal(struct {
			Type       string `json:"type"`
			SystemTime string `json:"systemTime"`
		}{e.Kind().Tag(), wireTime(e.SystemTime)})

	case ShiftEnded:
		return json.Marshal(struct {
			Type       string `json:"type"`
			SystemTime string `json:"systemTime"`
			ExitCause  string `json:"exitCause"`
		}{e.Kind().Tag(), wireTime(e.SystemTime), e.ExitCause})

	case RaceInfoSet:
		return json.Marshal(struct {
			Type           string `json:"type"`
			SystemTime     string `json:"systemTime"`
			Seed           int    `json:"seed"`
			Version        int    `json:"version"`
			StartDateUTC   string `json:"startDateUTC"`
			MaxTotalValue  int    `json:"maxTotalValue"`
			MaxSalvageMass int    `json:"maxSalvageMass"`
		}{e.Kind().Tag(), wireTime(e.SystemTime), e.Seed, e.Version, e.StartDateUTC, e.MaxTotalValue, e.MaxSalvageMass})

	case SalvageRecorded:
		categories := e.Categories
		if categories == nil {
			categories = []string{}
		}
		return json.Marshal(struct {
			Type           string   `json:"type"`
			SystemTime     string   `json:"systemTime"`
			ObjectName     string   `json:"objectName"`
			Mass           float64  `json:"mass"`
			Categories     []string `json:"categories"`
			SalvagedBy     string   `json:"salvagedBy"`
			Value          float64  `json:"value"`
			MassBasedValue bool     `json:"massBasedValue"`
			Destroyed      bool     `json:"destroyed"`
			GameTime       float64  `json:"gameTime"`
		}{e.Kind().Tag(), wireTime(e.SystemTime), e.ObjectName, e.Mass, categories, e.SalvagedBy, e.Value, e.MassBasedValue, e.Destroyed, e.GameTime})

	case GameStateChanged:
		return json.Marshal(struct {
			Type              string `json:"type"`
			SystemTime        string `json:"systemTime"`
			CurrentGameState  string `json:"currentGameState"`
			PreviousGameState string `json:"previousGameState"`
		}{e.Kind().Tag(), wireTime(e.SystemTime), e.Current, e.Previous})

	case TimeTick:
		return json.Marshal(struct {
			Type        string  `json:"type"`
			SystemTime  string  `json:"systemTime"`
			CurrentTime float64 `json:"currentTime"`
			MaxTime     float64 `json:"maxTime"`
			CountsUp    bool    `json:"countsUp"`
		}{e.Kind().Tag(), wireTime(e.SystemTime), e.CurrentTime, e.MaxTime, e.CountsUp})

	case Welcome:
		return json.Marshal(struct {
			Type       string `json:"type"`
			SystemTime string `json:"systemTime"`
			Msg        string `json:"msg"`
		}{e.Kind().Tag(), wireTime(e.SystemTime), e.Msg})

	default:
		return nil, fmt.Errorf("no wire mapping for event type %T", r)
	}
}
