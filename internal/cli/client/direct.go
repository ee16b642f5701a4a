package client

import (
	"context"

	"github.com/gatekit/gatekit/internal/catalog"
	"github.com/gatekit/gatekit/internal/gateway"
)

// Client is the surface commands/*.go program against; GatewayClient
// (HTTP) and DirectClient (in-process) both implement it, selected by the
// --direct flag the way the teacher's commands pick between a running
// daemon and an embedded McpGateway.
type Client interface {
	Search(ctx context.Context, q, kind string, limit int) (*SearchOutput, error)
	Schema(ctx context.Context, id, format string) (*SchemaOutput, error)
	Exec(ctx context.Context, id string, arguments map[string]interface{}, dryRun bool) (*catalog.ToolResult, error)
	Manage(ctx context.Context, in ManageInput) (*ManageOutput, error)
	Status(ctx context.Context) (*StatusResponse, error)
}

// DirectClient runs every call against an in-process gateway.Gateway,
// skipping HTTP entirely — for headless/CI invocation without a running
// gatekitd, per SPEC_FULL.md §1.1's "direct mode".
type DirectClient struct {
	gw *gateway.Gateway
}

// NewDirectClient wraps an already-constructed Gateway.
func NewDirectClient(gw *gateway.Gateway) *DirectClient {
	return &DirectClient{gw: gw}
}

func (d *DirectClient) Search(ctx context.Context, q, kind string, limit int) (*SearchOutput, error) {
	out, err := d.gw.Search(gateway.SearchInput{Q: q, Kind: kind, Limit: limit})
	if err != nil {
		return nil, err
	}
	result := &SearchOutput{Stats: struct {
		TotalCallables int `json:"total_callables"`
		TotalTools     int `json:"total_tools"`
		TotalSkills    int `json:"total_skills"`
	}{out.Stats.TotalCallables, out.Stats.TotalTools, out.Stats.TotalSkills}}
	for _, m := range out.Matches {
		result.Matches = append(result.Matches, SearchMatchView{
			ID: m.ID, Kind: m.Kind, FQName: m.FQName, Title: m.Title,
			Description: m.Description, Tags: m.Tags, SchemaDigest: m.SchemaDigest, Score: m.Score,
		})
	}
	return result, nil
}

func (d *DirectClient) Schema(ctx context.Context, id, format string) (*SchemaOutput, error) {
	out, err := d.gw.Schema(gateway.SchemaInput{ID: id, Format: format})
	if err != nil {
		return nil, err
	}
	return &SchemaOutput{ID: out.ID, JSONSchema: out.JSONSchema, Signature: out.Signature}, nil
}

func (d *DirectClient) Exec(ctx context.Context, id string, arguments map[string]interface{}, dryRun bool) (*catalog.ToolResult, error) {
	return d.gw.Exec(ctx, gateway.ExecInput{ID: id, Arguments: arguments, DryRun: dryRun})
}

func (d *DirectClient) Manage(ctx context.Context, in ManageInput) (*ManageOutput, error) {
	out, err := d.gw.Manage(gateway.ManageInput{
		Operation: in.Operation, SkillID: in.SkillID, Name: in.Name, Version: in.Version,
		Description: in.Description, SkillMD: in.SkillMD, UsesTools: in.UsesTools,
		InputSchema: in.InputSchema, Filename: in.Filename,
	})
	if err != nil {
		return nil, err
	}
	return &ManageOutput{Operation: out.Operation, SkillID: out.SkillID, Result: out.Result}, nil
}

func (d *DirectClient) Status(ctx context.Context) (*StatusResponse, error) {
	return &StatusResponse{
		Stats:   d.gw.Stats(),
		Servers: d.gw.Servers(),
		Skills:  d.gw.Skills(),
	}, nil
}
