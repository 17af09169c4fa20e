// Package services implements the driving ports: the linking orchestrator
// (AskService) and the history resolver (HistoryService).
//
// Services depend only on domain types and driven ports. Adapters are
// injected at construction in the composition root.
package services
