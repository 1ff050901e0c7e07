package checks

import "github.com/Strob0t/TestForge/internal/port/check"

func init() {
	check.Register("http_probe", newHTTPProbe)
	check.Register("content_scan", newContentScan)
	check.Register("latency_probe", newLatencyProbe)
	check.Register("llm_judge", newLLMJudge)
}
