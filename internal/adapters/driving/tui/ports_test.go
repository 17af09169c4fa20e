package tui

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/marginalia-cli/internal/core/domain"
	"github.com/custodia-labs/marginalia-cli/internal/core/ports/driving"
)

// MockHistoryService implements driving.HistoryService for testing.
type MockHistoryService struct {
	Histories []domain.SessionHistory
	Err       error
}

func (m *MockHistoryService) Resolve(_ context.Context, _ domain.DocumentID, _ domain.Query) ([]domain.SessionHistory, error) {
	return m.Histories, m.Err
}

func (m *MockHistoryService) Locate(_ context.Context, _ domain.DocumentID, _ domain.Query) (*domain.Highlight, error) {
	if len(m.Histories) == 0 {
		return nil, m.Err
	}
	return m.Histories[0].Highlight, m.Err
}

func (m *MockHistoryService) ForDocument(_ context.Context, _ domain.DocumentID) ([]domain.SessionHistory, error) {
	return m.Histories, m.Err
}

// MockAskService implements driving.AskService for testing.
type MockAskService struct {
	Fragments []string
	Result    *driving.AskResult
	Err       error

	LastRequest driving.AskRequest
}

func (m *MockAskService) Ask(_ context.Context, req driving.AskRequest) (*driving.AskResult, error) {
	m.LastRequest = req
	accumulated := ""
	for _, f := range m.Fragments {
		accumulated += f
		if req.OnFragment != nil {
			req.OnFragment(accumulated)
		}
	}
	return m.Result, m.Err
}

func TestPorts_Validate_Success(t *testing.T) {
	ports := &Ports{History: &MockHistoryService{}}

	assert.NoError(t, ports.Validate())
}

func TestPorts_Validate_MissingHistory(t *testing.T) {
	ports := &Ports{}

	assert.ErrorIs(t, ports.Validate(), ErrMissingHistoryService)
}

func TestPorts_Validate_AskOptional(t *testing.T) {
	ports := &Ports{History: &MockHistoryService{}, Ask: nil}

	assert.NoError(t, ports.Validate())
}
