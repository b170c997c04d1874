package twiliohook

// SecureCompare 以固定时间比较两个串是否相等，用于比较签名等机密数据。
//
// 耗时只取决于两个串中较长的那个的长度，与不相等的字节出现在何处无关：
// 较短的串视为以 0 补齐，逐字节异或后累积到同一个差异值；长度不同时也不会提前返回。
func SecureCompare(a, b string) bool {
	la, lb := len(a), len(b)
	n := la
	if lb > n {
		n = lb
	}

	var diff byte
	for i := 0; i < n; i++ {
		var x, y byte
		if i < la {
			x = a[i]
		}
		if i < lb {
			y = b[i]
		}
		diff |= x ^ y
	}

	lengthDiff := uint64(la ^ lb)
	return lengthDiff|uint64(diff) == 0
}
