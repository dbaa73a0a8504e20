// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"

	"sorvx-chat-go/internal/config"
	"sorvx-chat-go/pkg/log"
	"sorvx-chat-go/pkg/tasks"

	"github.com/segmentio/kafka-go"
)

// MailSender defines the interface for any service that can deliver a reset email.
// This decouples the Kafka consumer from the concrete SMTP implementation.
type MailSender interface {
	SendPasswordReset(email, resetLink string) error
}

var producer *kafka.Writer

// InitProducer 初始化 Kafka 生产者。
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
}

// ProduceResetEmail 发送一个重置邮件投递任务到 Kafka。
func ProduceResetEmail(task tasks.ResetEmailTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}

	return producer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(task.Email),
			Value: taskBytes,
		},
	)
}

// EmailNotifier 通过 Kafka 异步投递重置链接，实现 service.Notifier。
type EmailNotifier struct{}

// NewEmailNotifier 创建一个 EmailNotifier。
func NewEmailNotifier() *EmailNotifier {
	return &EmailNotifier{}
}

// SendResetLink 把投递任务写入 Kafka，由后台消费者实际发信。
func (n *EmailNotifier) SendResetLink(ctx context.Context, email, resetLink string) error {
	return ProduceResetEmail(tasks.ResetEmailTask{Email: email, ResetLink: resetLink})
}

// StartConsumer 启动一个 Kafka 消费者来投递重置邮件。
// 投递失败只记录日志并提交 offset——按通知契约不做任何重试，
// 令牌仍然有效，运维可依据日志手动补发。
func StartConsumer(cfg config.KafkaConfig, sender MailSender) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  "sorvx-chat-go-mailer",
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(context.Background())
		if err != nil {
			log.Error("从 Kafka 读取消息失败", err)
			break // 退出循环，由进程管理器负责重启
		}

		var task tasks.ResetEmailTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v", err)
			// 消息格式错误，直接提交，避免阻塞队列
			if err := r.CommitMessages(context.Background(), m); err != nil {
				log.Errorf("提交错误消息失败: %v", err)
			}
			continue
		}

		if err := sender.SendPasswordReset(task.Email, task.ResetLink); err != nil {
			// 链接留在服务端日志中，便于运维手动补发
			log.Errorf("重置邮件发送失败: %v, link: %s", err, task.ResetLink)
		} else {
			log.Infof("重置邮件发送成功, offset %d", m.Offset)
		}

		if err := r.CommitMessages(context.Background(), m); err != nil {
			log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
		}
	}

	if err := r.Close(); err != nil {
		log.Fatalf("关闭 Kafka 消费者失败: %v", err)
	}
}
