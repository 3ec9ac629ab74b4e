package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(v float64) *float64 { return &v }

func TestDistance(t *testing.T) {
	t.Run("identical points", func(t *testing.T) {
		assert.Equal(t, 0.0, Distance(10.776, 106.700, 10.776, 106.700))
	})

	t.Run("symmetric", func(t *testing.T) {
		ab := Distance(10.776, 106.700, 10.980, 106.650)
		ba := Distance(10.980, 106.650, 10.776, 106.700)
		assert.Equal(t, ab, ba)
	})

	t.Run("saigon to hanoi", func(t *testing.T) {
		// Ben Thanh market -> Hoan Kiem lake, roughly 1144 km
		d := Distance(10.7725, 106.6980, 21.0285, 105.8542)
		assert.InDelta(t, 1144, d, 2)
	})

	t.Run("rounded to one decimal", func(t *testing.T) {
		d := Distance(10.776, 106.700, 10.786, 106.700)
		assert.Equal(t, 1.1, d)
	})
}

func TestLabelForDistance(t *testing.T) {
	tests := []struct {
		km        float64
		wantText  string
		wantColor string
		wantTime  string
	}{
		{1, "Rất gần", "green", "~3 phút"},
		{2, "Rất gần", "green", "~6 phút"},
		{3, "Gần", "teal", "~9 phút"},
		{7, "Trung bình", "yellow", "~21 phút"},
		{15, "Xa", "orange", "~45 phút"},
		{25, "Rất xa", "red", "~75 phút"},
		{0.4, "Rất gần", "green", "~2 phút"},
	}

	for _, tt := range tests {
		t.Run(tt.wantText, func(t *testing.T) {
			label := LabelForDistance(tt.km)
			assert.Equal(t, tt.wantText, label.Text)
			assert.Equal(t, tt.wantColor, label.Color)
			assert.Equal(t, tt.wantTime, label.TravelTime)
		})
	}
}

func TestFormatSalary(t *testing.T) {
	tests := []struct {
		name   string
		amount *float64
		want   string
	}{
		{"nil is negotiable", nil, "Thỏa thuận"},
		{"whole millions", ptr(5_000_000), "5 triệu"},
		{"fractional millions", ptr(5_500_000), "5.5 triệu"},
		{"exactly one million", ptr(1_000_000), "1 triệu"},
		{"grouped below a million", ptr(500_000), "500.000đ"},
		{"small amount", ptr(900), "900đ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatSalary(tt.amount))
		})
	}
}

func TestFormatSalaryRange(t *testing.T) {
	tests := []struct {
		name     string
		min, max *float64
		want     string
	}{
		{"both absent", nil, nil, "Thỏa thuận"},
		{"min only", ptr(5_000_000), nil, "Từ 5 triệu"},
		{"max only", nil, ptr(8_000_000), "Đến 8 triệu"},
		{"both present", ptr(5_000_000), ptr(7_500_000), "5 triệu - 7.5 triệu"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatSalaryRange(tt.min, tt.max))
		})
	}
}
