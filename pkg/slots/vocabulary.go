package slots

// Phrases are matched on pricing.Normalize output, on word boundaries.

// blockers are idioms containing a destination alias that never name a
// place. They are masked out before destination matching.
var blockers = []string{
	// anh
	"anh chị", "anh chi", "anh ơi", "anh nhé", "anh ạ", "anh à", "anh nha", "anh em", "anh ấy",
	"anh trai", "anh có", "anh muốn", "anh cần", "anh hỏi", "anh đi", "của anh", "cho anh",
	"chào anh", "dạ anh", "vậy anh", "tiếng anh", "bên anh", "giúp anh", "với anh",
	// ý
	"ý kiến", "ý định", "ý nghĩa", "ý tưởng", "ý muốn", "ý thích", "ý là", "có ý", "theo ý",
	"tùy ý", "tuỳ ý", "ưng ý", "vừa ý", "chú ý", "đồng ý", "lưu ý", "để ý", "chủ ý",
	// áo
	"quần áo", "áo dài", "áo khoác", "áo ấm", "áo mưa", "áo len",
	// nhật
	"cập nhật", "chủ nhật", "nhật ký", "sinh nhật",
	// pháp
	"phương pháp", "pháp luật", "pháp lý", "hợp pháp", "giải pháp", "biện pháp", "ngữ pháp",
	"pháp nhân",
	// mỹ
	"thẩm mỹ", "mỹ phẩm", "mỹ thuật", "hoàn mỹ", "mỹ tho", "mỹ đình",
	// others
	"đạo đức", "lào cai",
}

// qualifiers make an ambiguous alias name a place when they precede it.
var qualifiers = []string{
	"visa", "đi", "du lịch", "tour", "phí", "giá", "sang", "nước", "đến", "tới",
}

// suffixQualifiers make an ambiguous alias name a place when they follow it.
var suffixQualifiers = []string{"quốc"}

var resetPhrases = []string{
	"reset", "restart", "bắt đầu lại", "khởi động lại", "làm lại từ đầu",
}

var (
	noMealOn = []string{
		"không ăn", "không cần ăn", "không bao gồm ăn", "không gồm ăn", "không gồm bữa",
		"không bao gồm bữa", "không cần bữa", "bỏ bữa", "bỏ ăn", "tự túc ăn", "tự ăn", "no meal",
	}
	noMealOff = []string{
		"có ăn", "bao gồm ăn", "gồm bữa ăn", "thêm bữa ăn", "có bữa ăn",
	}
	upgradeHotelOn = []string{
		"5 sao", "năm sao", "nâng cấp khách sạn", "khách sạn cao cấp", "nâng cấp phòng",
		"nâng hạng khách sạn", "resort",
	}
	upgradeHotelOff = []string{
		"không nâng cấp", "khách sạn 4 sao", "khách sạn 3 sao", "không cần 5 sao",
	}
	guideOn = []string{
		"hướng dẫn viên từ đầu", "hdv từ đầu", "hướng dẫn viên suốt", "hdv suốt",
		"hướng dẫn viên đi cùng", "hdv đi cùng", "hướng dẫn viên theo đoàn", "hdv theo đoàn",
		"guide từ đầu",
	}
	guideOff = []string{
		"không cần hướng dẫn viên", "không cần hdv", "không hdv",
	}
	noESIMOn = []string{
		"không cần esim", "không esim", "bỏ esim", "không cần sim", "không lấy sim", "không cần 4g",
	}
)

// CaseType classifies a special concern.
type CaseType string

const (
	CaseNone        CaseType = ""
	CaseRejection   CaseType = "rejection"
	CaseImmigration CaseType = "immigration"
	CaseFinancial   CaseType = "financial"
	CaseDocuments   CaseType = "documents"
	CaseEmployment  CaseType = "job"
	CaseUrgent      CaseType = "urgent"
)

type concern struct {
	caseType CaseType
	phrases  []string
}

// concerns are checked in order; the first family that matches wins.
var concerns = []concern{
	{CaseRejection, []string{
		"từng bị từ chối", "bị từ chối visa", "đã bị từ chối", "bị trượt visa", "từng bị trượt",
		"đã trượt visa", "trượt visa", "bị đánh trượt", "rớt visa", "bị rớt",
	}},
	{CaseImmigration, []string{
		"bất hợp pháp", "bat hop phap", "ở lậu", "quá hạn visa", "qua han visa", "lưu trú quá hạn",
		"ở lại chui", "tị nạn", "ti nạn", "nhập cư lậu", "không giấy phép cư trú",
	}},
	{CaseFinancial, []string{
		"không có sổ tiết kiệm", "chưa có sổ tiết kiệm", "không có sổ", "ko có sổ", "chưa có sổ",
		"không stk", "ko stk", "không đủ tiền", "không đủ tài chính",
		"không chứng minh được tài chính",
	}},
	{CaseDocuments, []string{
		"không sao kê", "ko sao kê", "không có sao kê", "ko có sao kê", "thiếu sao kê",
		"không có giấy sao kê", "không có bảng lương", "không chứng minh thu nhập",
		"không chứng minh tài chính", "không đóng thuế", "không kê khai thuế", "thiếu thuế",
	}},
	{CaseEmployment, []string{
		"công việc tự do", "làm tự do", "không có công ty", "ko có công ty", "không đi làm công ty",
		"không có hợp đồng lao động", "không có hdld", "không có hđlđ", "làm freelance",
		"freelance", "tự kinh doanh", "kinh doanh tự do", "thất nghiệp",
	}},
	{CaseUrgent, []string{
		"cần gấp", "gấp rút", "khẩn cấp", "cấp tốc", "express", "đi gấp", "làm gấp",
	}},
}

var numberWords = map[string]int{
	"một": 1, "mốt": 1, "hai": 2, "ba": 3, "bốn": 4, "tư": 4, "năm": 5, "lăm": 5,
	"sáu": 6, "bảy": 7, "bẩy": 7, "tám": 8, "chín": 9,
}

var (
	paxUnits   = map[string]bool{"người": true, "khách": true, "pax": true, "ng": true, "bạn": true, "vị": true}
	childUnits = map[string]bool{"trẻ": true, "bé": true, "cháu": true, "con": true}
	groupWords = map[string]bool{"nhóm": true, "đoàn": true}
	couples    = []string{"vợ chồng", "cặp đôi", "hai vợ chồng", "2 vợ chồng"}
	solo       = []string{"một mình", "1 mình", "đi lẻ"}
)
