package query

import (
	"encoding/json"
	"fmt"
	"strings"
)

// QueryType is the MongoDB shell operation name used when rendering queries
// for log lines.
type QueryType string

const (
	InsertOne        QueryType = "insertOne"
	FindOne          QueryType = "findOne"
	FindMany         QueryType = "find"
	UpdateOne        QueryType = "updateOne"
	DeleteOne        QueryType = "deleteOne"
	FindOneAndDelete QueryType = "findOneAndDelete"
)

// GenerateRawQuery renders a single-argument shell query, e.g.
// db.clients.findOne({'client_id':'abc'}).
func GenerateRawQuery(collection string, queryType QueryType, data any) string {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Sprintf("db.%s.%s(...)", collection, queryType)
	}
	return fmt.Sprintf("db.%s.%s(%s)", collection, queryType, shellFormat(string(body)))
}

// GenerateRawQueryWithFilter renders a filter+document shell query, e.g.
// db.clients.updateOne({'_id':'x'}, {'$set':{...}}).
func GenerateRawQueryWithFilter(collection string, queryType QueryType, filter, data any) string {
	filterJSON, ferr := json.Marshal(filter)
	dataJSON, derr := json.Marshal(data)
	if ferr != nil || derr != nil {
		return fmt.Sprintf("db.%s.%s(...)", collection, queryType)
	}
	return fmt.Sprintf("db.%s.%s(%s, %s)",
		collection, queryType, shellFormat(string(filterJSON)), shellFormat(string(dataJSON)))
}

// shellFormat swaps JSON double quotes for the single quotes the mongo shell
// prints, and undoes the escaping JSON added along the way.
func shellFormat(jsonStr string) string {
	out := strings.ReplaceAll(jsonStr, `"`, `'`)
	out = strings.ReplaceAll(out, `\'`, `'`)
	out = strings.ReplaceAll(out, `\\`, `\`)
	return out
}

func GenerateInsertQuery(collection string, data any) string {
	return GenerateRawQuery(collection, InsertOne, data)
}

func GenerateFindQuery(collection string, filter any) string {
	return GenerateRawQuery(collection, FindOne, filter)
}

func GenerateUpdateQuery(collection string, filter, update any) string {
	return GenerateRawQueryWithFilter(collection, UpdateOne, filter, update)
}

func GenerateDeleteQuery(collection string, filter any) string {
	return GenerateRawQuery(collection, DeleteOne, filter)
}

func GenerateFindOneAndDeleteQuery(collection string, filter any) string {
	return GenerateRawQuery(collection, FindOneAndDelete, filter)
}

// TruncateQuery caps a rendered query at maxLength for log lines.
func TruncateQuery(q string, maxLength int) string {
	if len(q) <= maxLength {
		return q
	}
	return q[:maxLength-3] + "..."
}
