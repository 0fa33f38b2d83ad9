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


// Package storage provides the storage abstraction layer for burrow.
//
// This package defines repository interfaces that decouple storage implementation
// from retrieval logic. Stored passages are core.Document values carrying their
// embedding vector; the vector stores in storage/badger and storage/bleve adapt
// them to the passage-store interface used by the retriever.
//
// # Constructor Return Type Pattern
//
// Public constructors in backend packages return interfaces to keep callers
// decoupled from a particular engine:
//
//	repo, err := badger.NewDocumentRepository(backend)  // returns storage.DocumentRepository
//
// Internal constructors (newDocumentRepository, etc.) may return concrete types
// since they're only used within the implementation package.
//
// # Architecture
//
//   - Repository: operations shared by all repositories (similarity, transactions)
//   - DocumentRepository: CRUD and paging over stored passages
//   - CheckpointRepository: resumable progress for processors such as reembed
//
// # Usage
//
// Use in tests with in-memory storage:
//
//	docs, checkpoints, backend, err := badger.NewMemoryRepositories()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support. Pass context.Background() for operations
// without specific timeout requirements.
package storage
