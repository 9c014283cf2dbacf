package engine

import (
	"errors"
	"strings"
)

// ErrSessionStopped is returned by operations on a stopped session.
var ErrSessionStopped = errors.New("engine session has been stopped")

// AnalysisError 表示 SQL 层的语义错误（表、列、函数不存在或语法错误）
type AnalysisError struct {
	Query string
	Err   error
}

func (e *AnalysisError) Error() string { return e.Err.Error() }

func (e *AnalysisError) Unwrap() error { return e.Err }

// IsAnalysisError 判断错误链中是否包含 AnalysisError
func IsAnalysisError(err error) bool {
	var ae *AnalysisError
	return errors.As(err, &ae)
}

var analysisMarkers = []string{
	"no such table",
	"no such column",
	"no such function",
	"no such view",
	"syntax error",
	"incomplete input",
	"ambiguous column name",
	"has no column named",
	"misuse of aggregate",
	"already exists",
	"no tables specified",
	"wrong number of arguments",
	"columns but",
}

// classify wraps SQL-layer semantic failures into AnalysisError.
func classify(query string, err error) error {
	if err == nil {
		return nil
	}
	if IsAnalysisError(err) {
		return err
	}
	msg := strings.ToLower(err.Error())
	for _, m := range analysisMarkers {
		if strings.Contains(msg, m) {
			return &AnalysisError{Query: query, Err: err}
		}
	}
	return err
}
