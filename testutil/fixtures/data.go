// =============================================================================
// 📦 测试数据工厂
// =============================================================================
// 提供样例数据文件与单元格代码
// =============================================================================
package fixtures

import (
	"os"
	"path/filepath"
	"testing"
)

// SalesCSV 带表头的销售样例
const SalesCSV = `region,product,amount
north,apple,10
south,apple,7
north,pear,3
south,pear,5
`

// PeopleJSON JSON Lines 样例
const PeopleJSON = `{"name": "ada", "age": 36}
{"name": "linus", "age": 28}
`

// 单元格代码样例
const (
	DefineX      = "var x = 5;"
	PrintX       = "print(x);"
	PlotLine     = "plt.plot([1, 2, 3], [2, 4, 8]); plt.title('growth'); plt.show();"
	ForbiddenOS  = `const os = require("os"); os.exit(1);`
	InfiniteLoop = "while (true) {}"
)

// WriteSalesCSV 把 SalesCSV 写入 dir/name
func WriteSalesCSV(t *testing.T, dir, name string) string {
	t.Helper()
	return write(t, dir, name, SalesCSV)
}

// WritePeopleJSON 把 PeopleJSON 写入 dir/name
func WritePeopleJSON(t *testing.T, dir, name string) string {
	t.Helper()
	return write(t, dir, name, PeopleJSON)
}

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write fixture %s: %v", name, err)
	}
	return path
}
