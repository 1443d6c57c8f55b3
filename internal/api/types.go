package api

import (
	"github.com/samcharles93/tilesched/internal/gemm"
	"github.com/samcharles93/tilesched/internal/graph"
	"github.com/samcharles93/tilesched/internal/hardware"
)

type ScheduleRequest struct {
	// Profile names the device; empty selects the server default.
	Profile string          `json:"profile,omitempty"`
	Problem *graph.Document `json:"problem"`
	// Tiles bypasses tile resolution.
	Tiles *gemm.TilePair `json:"tiles,omitempty"`
}

type ScheduleResponse struct {
	ID        string             `json:"id"`
	Object    string             `json:"object"`
	CreatedAt int64              `json:"created_at"`
	Name      string             `json:"name,omitempty"`
	Profile   string             `json:"profile"`
	Plan      *gemm.SchedulePlan `json:"plan"`
}

type DeleteScheduleResp struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

type KnowledgeResponse struct {
	Object  string             `json:"object"`
	Version string             `json:"version"`
	Data    []gemm.KnownTiling `json:"data"`
}

type ProfilesResponse struct {
	Object  string             `json:"object"`
	Default string             `json:"default"`
	Data    []hardware.Profile `json:"data"`
}

type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}
