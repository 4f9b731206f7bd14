// Package models はChainが選択する分類器の初期化、ハイパーパラメータ最適化、
// 学習済みモデルの保存と読み込みを提供します。
package models

import (
	"context"
	"encoding/gob"
	"io"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlu/core/model"
	"github.com/YuminosukeSato/mlu/pkg/errors"
	"github.com/YuminosukeSato/mlu/pkg/log"
	"github.com/YuminosukeSato/mlu/sklearn/model_selection"
	"github.com/YuminosukeSato/mlu/sklearn/neural_network"
	"github.com/YuminosukeSato/mlu/sklearn/tree"
)

// サポートされているモデルの種類
const (
	DecisionTree  = "decision_tree"
	NeuralNetwork = "neural_network"
)

// Types はサポートされているモデルの種類の一覧
var Types = []string{DecisionTree, NeuralNetwork}

// Classifier はChainが扱う分類器
type Classifier = model.Classifier

// aliases は設定ファイルで使える別名を正式なパラメータ名に対応させる
var aliases = map[string]map[string]string{
	DecisionTree:  {"depth": "max_depth"},
	NeuralNetwork: {"layers": "hidden_layer_sizes", "epochs": "max_iter"},
}

// New は未学習の分類器を作る。未知の種類やパラメータは ConfigurationError。
//
// 使用例:
//
//	clf, err := models.New("decision_tree", map[string]any{"max_depth": 3})
func New(modelType string, params map[string]interface{}) (Classifier, error) {
	var clf Classifier
	switch modelType {
	case DecisionTree:
		clf = tree.NewDecisionTreeClassifier()
	case NeuralNetwork:
		clf = neural_network.NewMLPClassifier()
	default:
		return nil, errors.NewConfigurationError("model type", modelType, Types...)
	}
	if len(params) > 0 {
		if err := clf.SetParams(normalizeParams(modelType, params)); err != nil {
			var cfg *errors.ConfigurationError
			if errors.As(err, &cfg) {
				return nil, err
			}
			return nil, errors.NewConfigurationError(modelType+" parameters", err.Error())
		}
	}
	log.GetLoggerWithName("models").Debug("model initialized", log.ModelTypeKey, modelType, log.ParamsKey, params)
	return clf, nil
}

func normalizeParams(modelType string, params map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		if canonical, ok := aliases[modelType][k]; ok {
			k = canonical
		}
		out[k] = v
	}
	return out
}

// OptimizeHyperparameters はグリッドまたはランダム探索で最良のパラメータを探し、
// そのパラメータで全データを学習した分類器を返す。
func OptimizeHyperparameters(ctx context.Context, modelType string, grid map[string][]interface{}, X *mat.Dense, y []float64, opts model_selection.SearchOptions) (Classifier, map[string]interface{}, error) {
	normalized := make(map[string][]interface{}, len(grid))
	for k, v := range grid {
		if canonical, ok := aliases[modelType][k]; ok {
			k = canonical
		}
		normalized[k] = v
	}

	res, err := model_selection.Search(ctx, func(params map[string]interface{}) (model.Classifier, error) {
		return New(modelType, params)
	}, normalized, X, y, opts)
	if err != nil {
		return nil, nil, err
	}

	best, err := New(modelType, res.BestParams)
	if err != nil {
		return nil, nil, err
	}
	n, _ := X.Dims()
	if err := best.Fit(X, mat.NewDense(n, 1, append([]float64(nil), y...))); err != nil {
		return nil, nil, err
	}
	log.GetLoggerWithName("models").Info("best parameters found",
		log.ModelTypeKey, modelType, log.ParamsKey, res.BestParams, "best_score", res.BestScore)
	return best, res.BestParams, nil
}

// TypeOf は分類器の種類名を返す
func TypeOf(clf Classifier) (string, error) {
	switch clf.(type) {
	case *tree.DecisionTreeClassifier:
		return DecisionTree, nil
	case *neural_network.MLPClassifier:
		return NeuralNetwork, nil
	default:
		return "", errors.NewValueError("models.TypeOf", "unsupported classifier")
	}
}

// envelope は保存ファイルの中身。Payload は分類器自身のgobエンコード。
type envelope struct {
	Type    string
	Payload []byte
}

// Save は学習済み分類器を w に書き出す
func Save(clf Classifier, w io.Writer) error {
	if !clf.IsFitted() {
		return errors.NewPreconditionError("save model", "a trained model")
	}
	typ, err := TypeOf(clf)
	if err != nil {
		return err
	}
	enc, ok := clf.(gob.GobEncoder)
	if !ok {
		return errors.NewValueError("models.Save", "classifier cannot be encoded")
	}
	payload, err := enc.GobEncode()
	if err != nil {
		return err
	}
	return model.SaveModelToWriter(envelope{Type: typ, Payload: payload}, w)
}

// Load は Save で書き出した分類器を読み込む
func Load(r io.Reader) (Classifier, error) {
	var env envelope
	if err := model.LoadModelFromReader(&env, r); err != nil {
		return nil, err
	}
	clf, err := New(env.Type, nil)
	if err != nil {
		return nil, err
	}
	dec, ok := clf.(gob.GobDecoder)
	if !ok {
		return nil, errors.NewValueError("models.Load", "classifier cannot be decoded")
	}
	if err := dec.GobDecode(env.Payload); err != nil {
		return nil, err
	}
	return clf, nil
}

// SaveFile は学習済み分類器をファイルに保存する
func SaveFile(clf Classifier, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := Save(clf, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadFile はファイルから分類器を読み込む
func LoadFile(path string) (Classifier, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return Load(f)
}
