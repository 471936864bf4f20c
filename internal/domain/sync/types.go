package sync

import (
	"fmt"
	"strings"
)

// IntegrationType is the closed set of supported external sources.
type IntegrationType string

const (
	TypeGoogleSheets    IntegrationType = "google_sheets"
	TypeExcelOneDrive   IntegrationType = "excel_onedrive"
	TypeExcelSharePoint IntegrationType = "excel_sharepoint"
	TypeDynamics365     IntegrationType = "dynamics_365"
)

func ParseIntegrationType(raw string) (IntegrationType, error) {
	switch IntegrationType(strings.TrimSpace(raw)) {
	case TypeGoogleSheets:
		return TypeGoogleSheets, nil
	case TypeExcelOneDrive:
		return TypeExcelOneDrive, nil
	case TypeExcelSharePoint:
		return TypeExcelSharePoint, nil
	case TypeDynamics365:
		return TypeDynamics365, nil
	default:
		return "", fmt.Errorf("unknown integration type %q", raw)
	}
}

// Provider returns the OAuth provider slug a type authenticates against.
// Both Excel variants live behind Microsoft Graph.
func (t IntegrationType) Provider() Provider {
	switch t {
	case TypeGoogleSheets:
		return ProviderGoogle
	case TypeExcelOneDrive, TypeExcelSharePoint:
		return ProviderMicrosoft
	case TypeDynamics365:
		return ProviderDynamics
	default:
		return Provider("")
	}
}

type Provider string

const (
	ProviderGoogle    Provider = "google"
	ProviderMicrosoft Provider = "microsoft"
	ProviderDynamics  Provider = "dynamics"
)

func ParseProvider(raw string) (Provider, error) {
	switch Provider(strings.TrimSpace(raw)) {
	case ProviderGoogle:
		return ProviderGoogle, nil
	case ProviderMicrosoft:
		return ProviderMicrosoft, nil
	case ProviderDynamics:
		return ProviderDynamics, nil
	default:
		return "", fmt.Errorf("unknown provider %q", raw)
	}
}

// TypesForProvider lists the integration types that share a provider's
// webhook endpoint. Webhook resolution only scans these.
func TypesForProvider(p Provider) []IntegrationType {
	switch p {
	case ProviderGoogle:
		return []IntegrationType{TypeGoogleSheets}
	case ProviderMicrosoft:
		return []IntegrationType{TypeExcelOneDrive, TypeExcelSharePoint}
	case ProviderDynamics:
		return []IntegrationType{TypeDynamics365}
	default:
		return nil
	}
}

type IntegrationStatus string

const (
	StatusConnected    IntegrationStatus = "connected"
	StatusDisconnected IntegrationStatus = "disconnected"
)

type Direction string

const (
	DirectionInbound       Direction = "inbound"
	DirectionOutbound      Direction = "outbound"
	DirectionBidirectional Direction = "bidirectional"
)

func ParseDirection(raw string) (Direction, error) {
	switch Direction(strings.TrimSpace(raw)) {
	case DirectionInbound:
		return DirectionInbound, nil
	case DirectionOutbound:
		return DirectionOutbound, nil
	case DirectionBidirectional:
		return DirectionBidirectional, nil
	default:
		return "", fmt.Errorf("unknown sync direction %q", raw)
	}
}

func (d Direction) AcceptsInbound() bool {
	return d == DirectionInbound || d == DirectionBidirectional
}

type Frequency string

const (
	FrequencyRealtime  Frequency = "realtime"
	FrequencyScheduled Frequency = "scheduled"
)

func ParseFrequency(raw string) (Frequency, error) {
	switch Frequency(strings.TrimSpace(raw)) {
	case FrequencyRealtime:
		return FrequencyRealtime, nil
	case FrequencyScheduled:
		return FrequencyScheduled, nil
	default:
		return "", fmt.Errorf("unknown sync frequency %q", raw)
	}
}

// ConflictStatus transitions pending -> one terminal state, enforced by a
// conditional update in the repository. The terminal states never change.
type ConflictStatus string

const (
	ConflictPending        ConflictStatus = "pending"
	ConflictResolvedLocal  ConflictStatus = "resolved_local"
	ConflictResolvedRemote ConflictStatus = "resolved_remote"
	ConflictIgnored        ConflictStatus = "ignored"
)

// Resolution is the operator's choice for a pending conflict.
type Resolution = ConflictStatus

func ParseResolution(raw string) (Resolution, error) {
	switch ConflictStatus(strings.TrimSpace(raw)) {
	case ConflictResolvedLocal:
		return ConflictResolvedLocal, nil
	case ConflictResolvedRemote:
		return ConflictResolvedRemote, nil
	case ConflictIgnored:
		return ConflictIgnored, nil
	default:
		return "", fmt.Errorf("invalid resolution %q", raw)
	}
}
