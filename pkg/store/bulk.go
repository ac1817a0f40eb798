// Copyright 2025 AUTHORS
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

package store

// QueryKind discriminates the two bulk query shapes recognized by the
// planner (§4.5.3).
type QueryKind string

const (
	QueryComponent QueryKind = "component"
	QuerySource    QueryKind = "source"
)

// Query is one entry in a bulk request. Not every field applies to every
// Kind: Setup/Platform/Name are mandatory for QueryComponent; Name (and, for
// kind=source, BID) are mandatory for QuerySource.
type Query struct {
	Query    QueryKind
	Setup    string
	Platform string
	Name     string
	Date     string

	// Kind selects, for a QuerySource entry, between "source" (default) and
	// "thirdparty".
	Kind string
	BID  string
}

// QueryResult is the outcome of one Query: exactly one of Response/Msg is
// set. Response holds either a *Component or a *File depending on the
// originating Query.Query.
type QueryResult struct {
	Query    Query
	Response any
	Msg      string
}

// BulkQuery implements the bulk query planner (§4.5.3). Exceptions from
// underlying calls are captured as strings into Msg and never propagate, so
// a single malformed query never poisons the batch.
func (d *DB) BulkQuery(queries []Query) []QueryResult {
	results := make([]QueryResult, 0, len(queries))
	for _, q := range queries {
		results = append(results, d.runBulkQuery(q))
	}
	return results
}

func (d *DB) runBulkQuery(q Query) QueryResult {
	switch q.Query {
	case QueryComponent:
		if q.Setup == "" || q.Platform == "" || q.Name == "" {
			return QueryResult{Query: q, Msg: "Invalid component query: one or more mandatory keys (setup, platform, name) is missing"}
		}
		comps, err := d.LatestComponents(q.Setup, q.Date, q.Platform, q.Name, "", "")
		if err != nil {
			return QueryResult{Query: q, Msg: err.Error()}
		}
		if len(comps) == 0 {
			return QueryResult{Query: q, Msg: "No component matching criteria"}
		}
		return QueryResult{Query: q, Response: &comps[0]}

	case QuerySource:
		if q.Name == "" {
			return QueryResult{Query: q, Msg: "Invalid source query: missing name"}
		}
		kind := q.Kind
		if kind == "" {
			kind = "source"
		}
		if kind == "thirdparty" {
			f, err := d.LatestThirdparty(q.Name, "", "")
			if err != nil {
				return QueryResult{Query: q, Msg: err.Error()}
			}
			if f == nil {
				return QueryResult{Query: q, Msg: "No thirdparty matching criteria"}
			}
			return QueryResult{Query: q, Response: f}
		}
		if q.BID == "" {
			return QueryResult{Query: q, Msg: "Invalid source query: missing build ID"}
		}
		f, err := d.GetSourceInfo(q.Name, q.BID, "source")
		if err != nil {
			return QueryResult{Query: q, Msg: err.Error()}
		}
		return QueryResult{Query: q, Response: f}

	default:
		return QueryResult{Query: q, Msg: "Invalid query type " + string(q.Query)}
	}
}
