// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package semdiff

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Comparison pipeline metrics
var (
	comparisonsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "semdiff_comparisons_total",
		Help: "Finished function-pair comparisons by composite verdict",
	}, []string{"verdict"})

	comparisonDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "semdiff_comparison_duration_seconds",
		Help:    "End-to-end duration of one function-pair comparison",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
	})

	simplifierRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "semdiff_simplifier_runs_total",
		Help: "External simplifier invocations, retries included",
	})

	semanticChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "semdiff_semantic_checks_total",
		Help: "Semantic backend escalations by verdict",
	}, []string{"verdict"})

	definitionsLinkedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "semdiff_definitions_linked_total",
		Help: "Missing definitions resolved from snapshots and linked",
	})

	cacheShortCircuitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "semdiff_cache_short_circuits_total",
		Help: "Comparisons answered from the cached comparison graph",
	})
)
