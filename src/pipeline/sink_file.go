package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/observability"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/strategy"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/utils"
	"github.com/goccy/go-json"
)

// FileSinkFactory es el sink de dry-run: escribe los planes como JSON lines, un archivo por topic.
type FileSinkFactory struct {
	outputDir string
	logger    observability.Logger
	mu        sync.Mutex
	files     map[string]*os.File
}

func NewFileSinkFactory(outputDir string, logger observability.Logger) (*FileSinkFactory, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	return &FileSinkFactory{
		outputDir: outputDir,
		logger:    logger,
		files:     make(map[string]*os.File),
	}, nil
}

func (fsf *FileSinkFactory) CreateSink(topic string) (GraphSink, error) {
	fsf.mu.Lock()
	defer fsf.mu.Unlock()

	if file, exists := fsf.files[topic]; exists {
		return &FileSink{
			file:   file,
			logger: fsf.logger,
		}, nil
	}

	filePath := filepath.Join(fsf.outputDir, fsf.getFileName(topic))

	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	fsf.files[topic] = file

	return &FileSink{
		file:   file,
		logger: fsf.logger,
	}, nil
}

func (fsf *FileSinkFactory) getFileName(topic string) string {
	return fmt.Sprintf("%s.jsonl", utils.SafeFileName(topic))
}

func (fsf *FileSinkFactory) Close() error {
	fsf.mu.Lock()
	defer fsf.mu.Unlock()

	for topic, file := range fsf.files {
		if err := file.Close(); err != nil {
			return err
		}
		delete(fsf.files, topic)
	}

	return nil
}

type FileSink struct {
	file   *os.File
	logger observability.Logger
	mu     sync.Mutex
}

// planLine es una linea del archivo: un grupo de transaccion.
type planLine struct {
	Topic       string                 `json:"topic"`
	Transaction int                    `json:"transaction"`
	Queries     []strategy.ChangeQuery `json:"queries"`
}

func (fs *FileSink) Execute(ctx context.Context, topic string, plan *strategy.Plan) error {
	if plan == nil {
		return nil
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	for i, tx := range plan.Transactions {
		jsonData, err := json.Marshal(planLine{Topic: topic, Transaction: i, Queries: tx})
		if err != nil {
			return fmt.Errorf("serialize plan: %w", err)
		}

		if _, err := fs.file.Write(append(jsonData, '\n')); err != nil {
			return fmt.Errorf("write to file: %w", err)
		}
	}

	fs.logger.Debug(ctx, "Plan escrito en archivo", "topic", topic, "transactions", len(plan.Transactions))

	return nil
}

func (fs *FileSink) Close(ctx context.Context) error {
	return nil
}
