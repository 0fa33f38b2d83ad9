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


package core

import (
	"fmt"
	"math"
	"time"
)

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - Content must not be empty
//   - InsertedAt must not be in the future
//
// NOT validated (populated by processors):
//   - Vector (can be empty until embedding runs)
//   - ID (0 is valid from database sequences)
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyContent)
	}

	if !IsValidTimestamp(doc.InsertedAt) {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrInvalidTimestamp)
	}

	return nil
}

// ValidatePassage checks the invariants a retrieved passage must hold.
// maxDepth <= 0 disables the upper depth bound.
func ValidatePassage(p *Passage, maxDepth int) error {
	if p == nil {
		return fmt.Errorf("%w: passage is nil", ErrInvalidPassage)
	}
	if p.RelevanceScore < 0 || p.RelevanceScore > 1 {
		return fmt.Errorf("%w: %w: %f", ErrInvalidPassage, ErrScoreOutOfRange, p.RelevanceScore)
	}
	if p.RetrievalDepth < 1 || (maxDepth > 0 && p.RetrievalDepth > maxDepth) {
		return fmt.Errorf("%w: %w: %d", ErrInvalidPassage, ErrInvalidDepth, p.RetrievalDepth)
	}
	return nil
}

// ClampScore limits a score to [0,1]. NaN maps to 0.
func ClampScore(s float64) float64 {
	if math.IsNaN(s) || s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// IsValidTimestamp checks if a timestamp is valid (not in the future).
func IsValidTimestamp(ts time.Time) bool {
	return !ts.After(time.Now())
}
