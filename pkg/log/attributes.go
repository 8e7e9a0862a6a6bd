package log

// Model and operation context.
const (
	// ModelNameKey identifies the compared model ("null", "tree", "forest", "knn").
	ModelNameKey = "model.name"

	// ModelKindKey identifies the model family behind an adapter.
	ModelKindKey = "model.kind"

	// RunIDKey identifies one comparison run.
	RunIDKey = "run.id"

	// OperationKey specifies the operation being performed.
	OperationKey = "ml.operation"

	// ComponentKey identifies the package performing the operation.
	ComponentKey = "ml.component"

	// PhaseKey indicates the pipeline stage.
	PhaseKey = "ml.phase"
)

// Data shape.
const (
	// SamplesKey is the number of records.
	SamplesKey = "data.samples"

	// FeaturesKey is the number of predictors.
	FeaturesKey = "data.features"

	// ColumnsKey lists selected columns.
	ColumnsKey = "data.columns"

	// DroppedKey is the number of records removed during preparation.
	DroppedKey = "data.dropped"

	// GridPointsKey is the number of points in a feature grid.
	GridPointsKey = "grid.points"

	// ResolutionKey is the per-axis grid resolution.
	ResolutionKey = "grid.resolution"
)

// Performance and results.
const (
	// DurationMsKey records the execution time in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records training accuracy.
	AccuracyKey = "metrics.accuracy"

	// AUCKey records training AUC.
	AUCKey = "metrics.auc"

	// PredsKey indicates the number of predictions made.
	PredsKey = "preds.count"

	// RowsKey is the number of rows in an assembled table.
	RowsKey = "table.rows"

	// ErrorKey carries an error value.
	ErrorKey = "error"
)

// Standard values for OperationKey.
const (
	OperationFit         = "fit"
	OperationPredict     = "predict"
	OperationPredictProb = "predict_prob"
	OperationPrepare     = "prepare"
	OperationBuildGrid   = "build_grid"
	OperationAssemble    = "assemble"
	OperationScore       = "score"
)

// Standard values for PhaseKey.
const (
	PhasePreparation = "preparation"
	PhaseGrid        = "grid"
	PhaseTraining    = "training"
	PhaseInference   = "inference"
	PhaseAssembly    = "assembly"
)
