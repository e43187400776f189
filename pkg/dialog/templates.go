package dialog

import (
	"fmt"
	"strings"

	"tourdesk/pkg/pricing"
	"tourdesk/pkg/session"
	"tourdesk/pkg/slots"
)

const maxListedServices = 5

var slotLabels = map[string]string{
	session.SlotDestination: "điểm đến (nước nào)",
	session.SlotDays:        "số ngày đi",
	session.SlotPax:         "số người đi",
}

var caseOpenings = map[slots.CaseType]string{
	slots.CaseFinancial:   "Dạ, em hiểu anh/chị đang lo về việc chứng minh tài chính khi xin visa đi %s.",
	slots.CaseEmployment:  "Dạ, em hiểu băn khoăn của anh/chị về việc chứng minh công việc khi xin visa đi %s.",
	slots.CaseRejection:   "Dạ, em hiểu việc từng bị từ chối visa khiến anh/chị lo lắng khi chuẩn bị đi %s lần này.",
	slots.CaseImmigration: "Dạ, em hiểu trường hợp liên quan đến tình trạng cư trú cần được xem xét thật cẩn thận trước khi đi %s.",
	slots.CaseDocuments:   "Dạ, em hiểu anh/chị đang thiếu một số giấy tờ như sao kê, bảng lương hoặc thuế khi xin visa đi %s.",
	slots.CaseUrgent:      "Dạ, em hiểu anh/chị cần đi %s gấp nên thời gian chuẩn bị hồ sơ rất quan trọng.",
}

const generalOpening = "Dạ, em hiểu những băn khoăn của anh/chị khi chuẩn bị đi %s."

type texts struct {
	hotline string
	brand   string
}

func (t texts) welcome() string {
	return fmt.Sprintf("👋 Xin chào! Cảm ơn anh/chị đã theo dõi %s. Em có thể báo giá tour du lịch nước ngoài ngay tại đây. Anh/chị muốn đi đâu, bao nhiêu người và trong mấy ngày ạ?", t.brand)
}

func (t texts) mediaNotice() string {
	return "Tôi đã nhận được hình ảnh của bạn. Tuy nhiên, tôi chỉ có thể xử lý tin nhắn văn bản. Vui lòng gửi yêu cầu bằng văn bản."
}

func (t texts) fallback() string {
	return fmt.Sprintf("Xin lỗi, có lỗi xảy ra. Vui lòng liên hệ hotline %s để được hỗ trợ.", t.hotline)
}

func (t texts) reset() string {
	return "Dạ, em đã reset thông tin. Anh/chị có thể bắt đầu lại nhé!"
}

func (t texts) phoneAck(phone string) string {
	return fmt.Sprintf("Cảm ơn anh/chị đã để lại số %s. Nhân viên sẽ liên hệ ngay để hỗ trợ chi tiết ạ!", phone)
}

func (t texts) specialCase(ct slots.CaseType, destination string) []string {
	if destination == "" {
		destination = "nước ngoài"
	}
	opening, ok := caseOpenings[ct]
	if !ok {
		opening = generalOpening
	}
	return []string{
		fmt.Sprintf(opening, destination),
		fmt.Sprintf("Đây là tình huống nhiều khách hàng của %s từng gặp, và mỗi hồ sơ cần chuyên viên phân tích riêng để tìm phương án phù hợp nhất.", t.brand),
		fmt.Sprintf("Anh/chị vui lòng gọi hotline %s hoặc để lại số điện thoại, chuyên viên sẽ liên hệ tư vấn chi tiết ạ.\n%s rất mong được hỗ trợ anh/chị!", t.hotline, t.brand),
	}
}

func (t texts) eliciting(destination string, missing []string) string {
	labels := make([]string, 0, len(missing))
	for _, m := range missing {
		labels = append(labels, slotLabels[m])
	}

	subject := "tour"
	if destination != "" {
		subject = "tour " + destination
	}
	return fmt.Sprintf("Dạ, để em báo giá %s, anh/chị cho em biết thêm %s ạ.", subject, joinVietnamese(labels))
}

func (t texts) clarify(alias pricing.Alias, missing []string) string {
	msg := fmt.Sprintf("Dạ, có phải anh/chị muốn đi %s không ạ?", alias.Destination)
	var rest []string
	for _, m := range missing {
		if m != session.SlotDestination {
			rest = append(rest, slotLabels[m])
		}
	}
	if len(rest) > 0 {
		msg += fmt.Sprintf(" Nếu đúng, anh/chị cho em biết thêm %s để em báo giá nhé.", joinVietnamese(rest))
	}
	return msg
}

func (t texts) needPhone() string {
	return fmt.Sprintf("Dạ, để hỗ trợ chi tiết hơn, anh/chị vui lòng để lại tên và số điện thoại hoặc gọi hotline %s. Nhân viên tư vấn sẽ liên hệ ngay ạ.", t.hotline)
}

func (t texts) quote(q pricing.Quote, destination string, defaultPriced bool, services []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dạ, với tour %s %d ngày cho %d người, giá tham khảo khoảng %s USD/người, tổng %s USD (chưa bao gồm vé máy bay).",
		destination, q.Days, q.Pax, q.PerPerson.Display(), q.Total.Display())
	if defaultPriced {
		fmt.Fprintf(&b, "\n%s chưa có bảng giá riêng nên em tạm tính theo mức giá chuẩn %s.", destination, q.Label)
	}
	fmt.Fprintf(&b, "\nĐơn giá %s USD/người/ngày.", q.RatePerDay.Display())
	if q.DiscountApplied {
		fmt.Fprintf(&b, " Đã giảm %s%% cho tour từ %d ngày.", trimPct(q.DiscountPct), q.Tier.LongDays)
	}

	listed := services
	more := ""
	if len(listed) > maxListedServices {
		listed = listed[:maxListedServices]
		more = "..."
	}
	if len(listed) > 0 {
		fmt.Fprintf(&b, "\nĐã gồm: %s%s", strings.Join(listed, ", "), more)
	}
	if q.Tier.Note != "" {
		fmt.Fprintf(&b, "\nHình thức: %s.", q.Tier.Note)
	}
	if q.Modifiers.NoESIM {
		b.WriteString("\nKhông gồm eSIM theo yêu cầu.")
	}
	b.WriteString("\nĐây là giá ước tính dựa trên thông tin anh/chị cung cấp. Nếu cần lịch trình chi tiết hoặc điều chỉnh theo nhu cầu riêng, anh/chị có muốn em hỗ trợ thêm không ạ?")
	return b.String()
}

// delta renders a requote after a modifier-only turn.
func (t texts) delta(prev, next pricing.Quote, reasons []string) string {
	var b strings.Builder

	perDay := next.RatePerDay - prev.RatePerDay
	perPerson := next.PerPerson - prev.PerPerson
	reason := joinVietnamese(reasons)

	switch {
	case perPerson < 0:
		fmt.Fprintf(&b, "(Đã giảm %s USD/khách/ngày do %s, tức %s USD/khách cho cả chuyến.)",
			(-perDay).Display(), reason, (-perPerson).Display())
	case perPerson > 0:
		fmt.Fprintf(&b, "(Đã tăng %s USD/khách/ngày do %s, tức %s USD/khách cho cả chuyến.)",
			perDay.Display(), reason, perPerson.Display())
	default:
		fmt.Fprintf(&b, "(Giá không thay đổi khi %s.)", reason)
	}
	fmt.Fprintf(&b, "\nGiá mới: %s USD/người, tổng %s USD cho %d người trong %d ngày.",
		next.PerPerson.Display(), next.Total.Display(), next.Pax, next.Days)
	b.WriteString("\nAnh/chị có muốn điều chỉnh thêm gì không ạ?")
	return b.String()
}

// modifierReasons describes which modifiers differ between two quotes.
func modifierReasons(prev, next pricing.Modifiers) []string {
	var out []string
	if prev.NoMeal != next.NoMeal {
		out = append(out, pick(next.NoMeal, "không gồm bữa ăn chính", "thêm lại bữa ăn chính"))
	}
	if prev.UpgradeHotel != next.UpgradeHotel {
		out = append(out, pick(next.UpgradeHotel, "nâng cấp khách sạn 5*", "bỏ nâng cấp khách sạn"))
	}
	if prev.GuideFromStart != next.GuideFromStart {
		out = append(out, pick(next.GuideFromStart, "có hướng dẫn viên đi cùng từ đầu", "bỏ hướng dẫn viên đi cùng từ đầu"))
	}
	if prev.NoESIM != next.NoESIM {
		out = append(out, pick(next.NoESIM, "không lấy eSIM", "thêm lại eSIM"))
	}
	return out
}

func pick(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}

func joinVietnamese(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " và " + items[len(items)-1]
	}
}

func trimPct(p float64) string {
	s := fmt.Sprintf("%.2f", p)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
