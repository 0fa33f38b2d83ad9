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


// Package rerank rescores retrieved passages against the query that produced them.
//
// A Scorer turns (query, passage) pairs into relevance scores in [0,1].
// Two scorers are provided:
//
//   - CosineScorer: character n-gram TF-IDF cosine similarity, no external services
//   - CrossEncoderScorer: an HTTP client for a cross-encoder /rerank endpoint
//     (text-embeddings-inference compatible); raw logits are squashed with Logistic
//
// A Reranker holds an ordered list of scorers and uses the first one that
// succeeds. The new score of a passage is a weighted blend of its previous
// score and the scorer's output (0.4 and 0.6 by default). If every scorer
// fails the passages are returned with their scores unchanged.
package rerank
