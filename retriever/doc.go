// Copyright 2025 Poiesic Systems
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


// Package retriever implements recursive, confidence-gated passage retrieval.
//
// A Retriever searches a PassageStore for the query. When the average relevance
// of the returned passages falls below the configured confidence threshold it
// asks a sub-query generator for follow-up queries and searches those one level
// deeper, depth-first, until the depth limit or one of the per-call budgets is
// reached. Every passage collected along the way is deduplicated, reranked and
// truncated to the configured size.
//
// # Budgets
//
// Each call carries its own counters: the number of queries issued, the number
// of documents collected and the set of queries already attempted. They are
// checked before every search, so a Retriever is safe for concurrent use.
//
// # Observability
//
// RetrieveWithReport returns a core.Report whose retrieval tree mirrors the
// recursion, with a status on every node explaining why it stopped. A Monitor
// receives callbacks as the search progresses; the metrics package provides a
// Prometheus implementation.
package retriever
