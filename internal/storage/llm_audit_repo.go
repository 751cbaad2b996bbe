package storage

import (
	"context"
	"fmt"
)

type LLMCallRecord struct {
	CallID       string
	Operation    string
	ReportID     string
	ProviderName string
	Model        string
	RequestID    string
	Status       string
	ErrorType    string
	PromptTokens int
}

type LLMAuditRepo struct {
	db *DB
}

func NewLLMAuditRepo(db *DB) *LLMAuditRepo {
	return &LLMAuditRepo{db: db}
}

func (r *LLMAuditRepo) Insert(ctx context.Context, rec LLMCallRecord) error {
	if err := r.db.EnsureSchema(ctx); err != nil {
		return err
	}
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO llm_calls(call_id, operation, report_id, provider_name, model, request_id, status, error_type, prompt_tokens)
VALUES (COALESCE(NULLIF($1,'')::uuid, gen_random_uuid()), $2, NULLIF($3,''), $4, $5, NULLIF($6,''), $7, NULLIF($8,''), $9)`,
		rec.CallID, rec.Operation, rec.ReportID, rec.ProviderName, rec.Model, rec.RequestID, rec.Status, rec.ErrorType, rec.PromptTokens)
	if err != nil {
		return fmt.Errorf("insert llm call: %w", err)
	}
	return nil
}
