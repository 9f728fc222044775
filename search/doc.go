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


// Package search finds stored chunks and artifacts similar to a query and
// surrounds each hit with its neighboring units.
//
// An Index performs an exact cosine-similarity scan over every stored
// vector of one kind on each query. Child scores are grouped by parent and
// a parent is ranked by its best child, so one highly relevant chunk
// surfaces the whole conversation.
//
// An Enricher fetches the units before and after a matched position. The
// Searcher ties both together behind a text query and flags hits whose text
// contains every significant query word.
package search
