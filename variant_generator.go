package twiliohook

/*
当前文件枚举平台可能实际签名的 URL 的等价写法。

每个变换维度是一组互相独立的 URL 变换，各维度做笛卡尔积后去重。
增加新的维度只需往 variantAxes 的返回值里追加一项，不影响已有维度。
校验只关心结果集合中是否存在匹配项，与枚举顺序无关。
*/

// urlTransform 是对 URL 的一个变换。
type urlTransform func(rawURL string) string

// variantAxis 是一个变换维度，其中每个变换产生该维度上的一种写法。
type variantAxis []urlTransform

func identity(rawURL string) string { return rawURL }

// variantAxes 返回生成候选 URL 所用的变换维度，按应用顺序排列。
// 协议维度需在端口维度之前应用，使默认端口与最终的 scheme 对应。
func variantAxes(opts ValidationOptions) []variantAxis {
	protocolAxis := variantAxis{identity}
	if opts.TestBothProtocols {
		protocolAxis = variantAxis{
			func(s string) string { return WithScheme(s, "https") },
			func(s string) string { return WithScheme(s, "http") },
		}
	}

	return []variantAxis{
		protocolAxis,
		{
			func(s string) string { return WithPort(s, false) },
			func(s string) string { return WithPort(s, true) },
		},
		{
			func(s string) string { return WithTrailingSlash(s, false) },
			func(s string) string { return WithTrailingSlash(s, true) },
		},
		// 保留原始写法：混用 %20 和 + 的 query 不等于任一种统一改写的结果。
		{
			identity,
			func(s string) string { return WithQueryEncoding(s, QueryEncodingModern) },
			func(s string) string { return WithQueryEncoding(s, QueryEncodingLegacy) },
		},
	}
}

// CandidateURLs 返回与 rawURL 等价的、平台可能实际用于签名的全部 URL 写法，结果已去重。
// 维度包括：
//   - query 中空格的编码方式（原样、 %20 或 + ）；
//   - 协议，仅在 [ValidationOptions.TestBothProtocols] 时同时尝试 http 和 https ；
//   - 是否显式写出默认端口；
//   - 路径末尾是否有“/”。
//
// 通常最多 16 个； query 混用两种编码时，原样的写法额外计入，最多 24 个。某些维度对给定的 URL 可能不起作用，比如没有 query 的 URL 不受编码方式影响。
// 若 rawURL 无法解析，所有变换都原样返回，结果只包含 rawURL 自身。
func CandidateURLs(rawURL string, opts ValidationOptions) []string {
	candidates := []string{rawURL}
	for _, axis := range variantAxes(opts) {
		next := make([]string, 0, len(candidates)*len(axis))
		for _, c := range candidates {
			for _, transform := range axis {
				next = append(next, transform(c))
			}
		}
		candidates = distinct(next)
	}
	return candidates
}

// distinct 去除重复的串，保留首次出现的顺序。
func distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	res := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		res = append(res, v)
	}
	return res
}
