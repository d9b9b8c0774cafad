// Package telegram оборачивает Bot API для нужд движка:
// отправка сообщений, исключение из группы, ссылки-приглашения.
package telegram

import (
	"encoding/json"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// banDuration — краткий бан при исключении из группы. Telegram снимает
// бан меньше минуты автоматически, поэтому пользователь сможет
// вернуться после повторной оплаты.
const banDuration = 35 * time.Second

// Client отправляет сообщения и управляет членством в группе клуба.
type Client struct {
	api     *tgbotapi.BotAPI
	groupID int64
}

// New создает клиент Bot API и проверяет токен запросом getMe.
func New(token string, groupID int64) (*Client, error) {
	const op = "telegram.New"
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Client{api: api, groupID: groupID}, nil
}

// BotUsername возвращает имя бота для реферальных ссылок.
func (c *Client) BotUsername() string {
	return c.api.Self.UserName
}

// SendMessage отправляет HTML-сообщение в чат.
func (c *Client) SendMessage(chatID int64, text string) error {
	const op = "telegram.SendMessage"
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// KickFromGroup исключает пользователя из группы клуба.
// Бан короткий, чтобы пользователь мог вернуться после оплаты.
func (c *Client) KickFromGroup(userID int64) error {
	const op = "telegram.KickFromGroup"
	ban := tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{
			ChatID: c.groupID,
			UserID: userID,
		},
		UntilDate: time.Now().Add(banDuration).Unix(),
	}
	if _, err := c.api.Request(ban); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// MemberStatus возвращает статус пользователя в группе клуба.
func (c *Client) MemberStatus(userID int64) (string, error) {
	const op = "telegram.MemberStatus"
	member, err := c.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: c.groupID,
			UserID: userID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return member.Status, nil
}

// CreateInviteLink создает одноразовую ссылку-приглашение в группу.
func (c *Client) CreateInviteLink() (string, error) {
	const op = "telegram.CreateInviteLink"
	cfg := tgbotapi.CreateChatInviteLinkConfig{
		ChatConfig:  tgbotapi.ChatConfig{ChatID: c.groupID},
		MemberLimit: 1,
	}
	resp, err := c.api.Request(cfg)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	var link struct {
		InviteLink string `json:"invite_link"`
	}
	if err := json.Unmarshal(resp.Result, &link); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return link.InviteLink, nil
}
