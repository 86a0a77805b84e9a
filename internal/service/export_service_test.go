package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/straywatch/straywatch-api/pkg/errors"
)

func exportFixtureIncidents() *incidentRepoStub {
	incident := pendingIncident("incident-1", nil)
	incident.SubmittedAt = time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	return newIncidentRepoStub(incident)
}

func TestExportServiceIncidentRegisterCSV(t *testing.T) {
	svc := NewExportService(exportFixtureIncidents(), newAnimalRepoStub(),
		ExportConfig{Enabled: true}, nil, nil, nil)

	result, err := svc.IncidentRegister(context.Background(), ExportFormatCSV, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.True(t, strings.HasPrefix(result.Filename, "incident_register_"))
	assert.True(t, strings.HasSuffix(result.Filename, ".csv"))

	body := string(result.Payload)
	assert.Contains(t, body, "ID,Type,Priority,Status,Address,Submitted At")
	assert.Contains(t, body, "incident-1")
	assert.Contains(t, body, "pending_verification")
}

func TestExportServiceAnimalRegisterPDF(t *testing.T) {
	tag := "123456789"
	svc := NewExportService(exportFixtureIncidents(), newAnimalRepoStub(capturedAnimal("animal-1", &tag)),
		ExportConfig{Enabled: true}, nil, nil, nil)

	result, err := svc.AnimalRegister(context.Background(), ExportFormatPDF)

	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasSuffix(result.Filename, ".pdf"))
	assert.True(t, strings.HasPrefix(string(result.Payload), "%PDF"))
}

func TestExportServiceDisabled(t *testing.T) {
	svc := NewExportService(exportFixtureIncidents(), newAnimalRepoStub(),
		ExportConfig{Enabled: false}, nil, nil, nil)

	_, err := svc.IncidentRegister(context.Background(), ExportFormatCSV, nil, nil)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = svc.AnimalRegister(context.Background(), ExportFormatCSV)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestExportServiceUnknownFormat(t *testing.T) {
	svc := NewExportService(exportFixtureIncidents(), newAnimalRepoStub(),
		ExportConfig{Enabled: true}, nil, nil, nil)

	_, err := svc.IncidentRegister(context.Background(), ExportFormat("xlsx"), nil, nil)

	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
