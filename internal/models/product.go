package models

// Product описывает продаваемый продукт: название, описание,
// цена в рублях и количество дней подписки (0 для разовых продуктов).
type Product struct {
	Type        string
	Name        string
	Description string
	Amount      int
	Days        int
}

// Prices — настраиваемые цены продуктов в рублях.
type Prices struct {
	Club         int
	Vietnam      int
	Consultation int
	ClubDays     int
}

// DescribeProduct возвращает описание продукта по его типу.
// Для неизвестного типа возвращает нулевой продукт и ok=false.
func DescribeProduct(productType string, prices Prices) (Product, bool) {
	switch productType {
	case ProductClub:
		return Product{
			Type:        ProductClub,
			Name:        "Клуб Х10",
			Description: "Доступ к Клубу Х10 на 1 месяц",
			Amount:      prices.Club,
			Days:        prices.ClubDays,
		}, true
	case ProductVietnam:
		return Product{
			Type:        ProductVietnam,
			Name:        "Экскурсия по Вьетнаму",
			Description: "VIP продукт: экскурсия по Вьетнаму",
			Amount:      prices.Vietnam,
		}, true
	case ProductConsultation:
		return Product{
			Type:        ProductConsultation,
			Name:        "Консультация основателя",
			Description: "Персональная консультация с основателем Клуба Х10",
			Amount:      prices.Consultation,
		}, true
	default:
		return Product{}, false
	}
}
