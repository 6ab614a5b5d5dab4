// Package domain holds the limits validator's value types: violation kinds,
// severities, and the validation result a caller acts on.
package domain

import "time"

// ViolationType classifies which limit was breached.
type ViolationType string

const (
	ViolationExchangeCountExceeded         ViolationType = "exchange_count_exceeded"
	ViolationSymbolCountExceeded           ViolationType = "symbol_count_exceeded"
	ViolationSymbolPerExchangeExceeded     ViolationType = "symbol_per_exchange_exceeded"
	ViolationConcurrentOpportunitiesExceeded ViolationType = "concurrent_opportunities_exceeded"
	ViolationOrderBatchSizeExceeded        ViolationType = "order_batch_size_exceeded"
)

// Severity ranks how urgently a violation needs attention.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Violation records one limit breach.
type Violation struct {
	ID                string
	Type              ViolationType
	Timestamp         time.Time
	CurrentValue      int
	LimitValue        int
	Details           string
	Severity          Severity
	RecommendedAction string
}

// Result is the outcome of a single validation call.
type Result struct {
	IsValid         bool
	Violations      []Violation
	Recommendations []string
}

// RiskLevel classifies overall compliance against configured limits.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// ComplianceStatus summarizes current usage against limits.
type ComplianceStatus struct {
	OverallCompliancePercent float64
	ExchangeUsagePercent     float64
	SymbolUsagePercent       float64
	IsCompliant              bool
	RiskLevel                RiskLevel
}
