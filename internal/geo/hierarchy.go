package geo

func box(latMin, latMax, lonMin, lonMax float64) BBox {
	return BBox{LatMin: latMin, LatMax: latMax, LonMin: lonMin, LonMax: lonMax}
}

// southChinaRegions returns Guangdong ahead of Guangxi; overlapping rectangles
// resolve to whichever is declared first.
func southChinaRegions() []Province {
	return []Province{
		{
			Name: "广东省",
			Cities: []City{
				{Name: "广州市", BBox: box(22.7, 23.3, 113.1, 113.6), Districts: []District{
					{Name: "越秀区", BBox: box(23.12, 23.16, 113.24, 113.30)},
					{Name: "天河区", BBox: box(23.11, 23.24, 113.32, 113.40)},
					{Name: "海珠区", BBox: box(23.05, 23.15, 113.22, 113.32)},
					{Name: "荔湾区", BBox: box(23.06, 23.15, 113.16, 113.26)},
					{Name: "白云区", BBox: box(23.10, 23.30, 113.10, 113.30)},
					{Name: "黄埔区", BBox: box(23.05, 23.25, 113.35, 113.55)},
					{Name: "番禺区", BBox: box(22.80, 23.00, 113.20, 113.50)},
					{Name: "花都区", BBox: box(23.20, 23.40, 112.90, 113.20)},
					{Name: "南沙区", BBox: box(22.60, 22.80, 113.30, 113.60)},
					{Name: "从化区", BBox: box(23.40, 23.70, 113.30, 114.00)},
					{Name: "增城区", BBox: box(23.10, 23.50, 113.50, 114.00)},
				}},
				{Name: "深圳市", BBox: box(22.3, 22.8, 113.7, 114.6), Districts: []District{
					{Name: "罗湖区", BBox: box(22.53, 22.57, 114.04, 114.12)},
					{Name: "福田区", BBox: box(22.51, 22.57, 113.93, 114.04)},
					{Name: "南山区", BBox: box(22.42, 22.55, 113.87, 114.00)},
					{Name: "宝安区", BBox: box(22.44, 22.70, 113.72, 114.00)},
					{Name: "龙岗区", BBox: box(22.53, 22.80, 114.08, 114.30)},
					{Name: "盐田区", BBox: box(22.57, 22.68, 114.22, 114.32)},
					{Name: "龙华区", BBox: box(22.54, 22.70, 113.90, 114.08)},
					{Name: "坪山区", BBox: box(22.65, 22.80, 114.15, 114.40)},
					{Name: "光明区", BBox: box(22.70, 22.80, 113.90, 114.05)},
					{Name: "大鹏新区", BBox: box(22.40, 22.60, 114.20, 114.60)},
				}},
				{Name: "珠海市", BBox: box(21.8, 22.4, 113.2, 113.7)},
				{Name: "汕头市", BBox: box(23.1, 23.5, 116.4, 117.2)},
				{Name: "佛山市", BBox: box(22.9, 23.3, 112.9, 113.3)},
				{Name: "韶关市", BBox: box(24.5, 25.4, 113.4, 114.3)},
				{Name: "湛江市", BBox: box(20.8, 21.5, 110.2, 110.9)},
				{Name: "肇庆市", BBox: box(23.1, 23.8, 112.2, 112.8)},
				{Name: "江门市", BBox: box(22.3, 22.8, 112.4, 113.0)},
				{Name: "茂名市", BBox: box(21.3, 21.8, 110.7, 111.3)},
				{Name: "惠州市", BBox: box(22.8, 23.5, 114.3, 114.9)},
				{Name: "梅州市", BBox: box(24.0, 24.4, 116.0, 116.4)},
				{Name: "汕尾市", BBox: box(22.7, 23.1, 115.2, 116.0)},
				{Name: "河源市", BBox: box(23.6, 24.3, 114.4, 115.2)},
				{Name: "阳江市", BBox: box(21.7, 22.3, 111.4, 112.0)},
				{Name: "清远市", BBox: box(23.4, 24.2, 112.9, 113.5)},
				{Name: "东莞市", BBox: box(22.8, 23.1, 113.6, 114.1)},
				{Name: "中山市", BBox: box(22.4, 22.7, 113.1, 113.5)},
				{Name: "潮州市", BBox: box(23.4, 23.7, 116.3, 116.7)},
				{Name: "揭阳市", BBox: box(22.9, 23.5, 115.8, 116.4)},
				{Name: "云浮市", BBox: box(22.7, 23.2, 111.9, 112.4)},
			},
		},
		{
			Name: "广西壮族自治区",
			Cities: []City{
				{Name: "南宁市", BBox: box(22.7, 23.3, 108.1, 108.5)},
				{Name: "柳州市", BBox: box(23.6, 24.4, 108.9, 109.7)},
				{Name: "桂林市", BBox: box(24.7, 25.5, 110.1, 110.7)},
				{Name: "梧州市", BBox: box(22.8, 23.6, 111.1, 111.7)},
				{Name: "北海市", BBox: box(20.8, 21.6, 108.8, 109.6)},
				{Name: "防城港市", BBox: box(21.3, 22.1, 107.5, 108.5)},
				{Name: "钦州市", BBox: box(21.7, 22.7, 108.4, 109.2)},
				{Name: "贵港市", BBox: box(22.8, 23.8, 109.2, 109.8)},
				{Name: "玉林市", BBox: box(22.1, 23.1, 109.8, 110.6)},
				{Name: "百色市", BBox: box(23.5, 24.5, 106.2, 107.0)},
				{Name: "贺州市", BBox: box(23.7, 24.5, 111.1, 112.0)},
				{Name: "河池市", BBox: box(23.9, 25.1, 107.6, 108.6)},
				{Name: "来宾市", BBox: box(23.3, 24.1, 108.6, 109.4)},
				{Name: "崇左市", BBox: box(22.1, 23.1, 107.1, 108.2)},
			},
		},
	}
}
