// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package database

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type storeMetrics struct {
	refs    prometheus.Gauge
	added   prometheus.Counter
	removed prometheus.Counter
}

func (m *storeMetrics) init(promRegistry prometheus.Registerer) {
	// promauto.With(nil) creates collectors without registering them
	promautoFactory := promauto.With(promRegistry)
	m.refs = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "utxoorder_store_refs",
		Help: "number of UTxO refs in the store",
	})
	m.added = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "utxoorder_store_added_total",
		Help: "total number of UTxO refs added to the store",
	})
	m.removed = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "utxoorder_store_removed_total",
		Help: "total number of UTxO refs removed from the store",
	})
}
